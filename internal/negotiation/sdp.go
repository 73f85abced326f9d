package negotiation

import (
	"fmt"
	"log"
	"regexp"
	"strings"
)

const (
	videoCodecParamStartBitrate = "x-google-start-bitrate"
	audioCodecParamBitrate      = "maxaveragebitrate"
)

// splitLines splits an SDP blob on CRLF, dropping trailing empty lines
// so a final CRLF does not produce a phantom entry.
func splitLines(sdp string) []string {
	lines := strings.Split(sdp, "\r\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func joinLines(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	return b.String()
}

// rtpmapPattern matches
// a=rtpmap:<payload type> <encoding name>/<clock rate> [/<encoding parameters>]
// for the given codec name.
func rtpmapPattern(codec string) *regexp.Regexp {
	return regexp.MustCompile(`^a=rtpmap:(\d+) ` + regexp.QuoteMeta(codec) + `(/\d+)+[\r]?$`)
}

// PreferCodec moves the given codec to the front of the matching media
// line's payload-type list. If the SDP has no such media line or no
// rtpmap for the codec, it is returned unmodified.
func PreferCodec(sdp, codec string, isAudio bool) string {
	lines := splitLines(sdp)
	mLineIndex := -1
	codecRtpMap := ""
	codecPattern := rtpmapPattern(codec)
	mediaDescription := "m=video "
	if isAudio {
		mediaDescription = "m=audio "
	}
	for i := 0; i < len(lines) && (mLineIndex == -1 || codecRtpMap == ""); i++ {
		if strings.HasPrefix(lines[i], mediaDescription) {
			mLineIndex = i
			continue
		}
		if match := codecPattern.FindStringSubmatch(lines[i]); match != nil {
			codecRtpMap = match[1]
		}
	}
	if mLineIndex == -1 {
		log.Printf("[negotiation] no %sline, so can't prefer %s", mediaDescription, codec)
		return sdp
	}
	if codecRtpMap == "" {
		log.Printf("[negotiation] no rtpmap for %s", codec)
		return sdp
	}
	log.Printf("[negotiation] found %s rtpmap %s, prefer at %s", codec, codecRtpMap, lines[mLineIndex])

	// Format is: m=<media> <port> <proto> <fmt> ...
	parts := strings.Split(lines[mLineIndex], " ")
	if len(parts) > 3 {
		var b strings.Builder
		b.WriteString(parts[0])
		b.WriteString(" ")
		b.WriteString(parts[1])
		b.WriteString(" ")
		b.WriteString(parts[2])
		b.WriteString(" ")
		b.WriteString(codecRtpMap)
		for _, part := range parts[3:] {
			if part != codecRtpMap {
				b.WriteString(" ")
				b.WriteString(part)
			}
		}
		lines[mLineIndex] = b.String()
		log.Printf("[negotiation] change media description: %s", lines[mLineIndex])
	} else {
		log.Printf("[negotiation] wrong SDP media description format: %s", lines[mLineIndex])
	}
	return joinLines(lines)
}

// SetStartBitrate injects the codec's start-bitrate parameter into the
// SDP. An existing a=fmtp line for the codec's payload type gets the
// parameter appended; otherwise a new a=fmtp line is inserted directly
// after the codec's rtpmap line. The bitrate is given in kbps; the
// audio parameter is expressed in bps on the wire, the video parameter
// stays in kbps.
func SetStartBitrate(codec string, isVideoCodec bool, sdp string, bitrateKbps int) string {
	lines := splitLines(sdp)
	rtpmapLineIndex := -1
	codecRtpMap := ""
	codecPattern := rtpmapPattern(codec)
	for i, line := range lines {
		if match := codecPattern.FindStringSubmatch(line); match != nil {
			codecRtpMap = match[1]
			rtpmapLineIndex = i
			break
		}
	}
	if codecRtpMap == "" {
		log.Printf("[negotiation] no rtpmap for %s codec", codec)
		return sdp
	}
	log.Printf("[negotiation] found %s rtpmap %s at %s", codec, codecRtpMap, lines[rtpmapLineIndex])

	// Update an existing a=fmtp line for this codec with the new
	// bitrate parameter, if one exists.
	updated := false
	fmtpPattern := regexp.MustCompile(`^a=fmtp:` + codecRtpMap + ` \w+=\d+.*[\r]?$`)
	for i, line := range lines {
		if fmtpPattern.MatchString(line) {
			log.Printf("[negotiation] found %s %s", codec, line)
			if isVideoCodec {
				lines[i] += fmt.Sprintf("; %s=%d", videoCodecParamStartBitrate, bitrateKbps)
			} else {
				lines[i] += fmt.Sprintf("; %s=%d", audioCodecParamBitrate, bitrateKbps*1000)
			}
			log.Printf("[negotiation] update remote SDP line: %s", lines[i])
			updated = true
			break
		}
	}

	var b strings.Builder
	for i, line := range lines {
		b.WriteString(line)
		b.WriteString("\r\n")
		if !updated && i == rtpmapLineIndex {
			var bitrateSet string
			if isVideoCodec {
				bitrateSet = fmt.Sprintf("a=fmtp:%s %s=%d", codecRtpMap, videoCodecParamStartBitrate, bitrateKbps)
			} else {
				bitrateSet = fmt.Sprintf("a=fmtp:%s %s=%d", codecRtpMap, audioCodecParamBitrate, bitrateKbps*1000)
			}
			log.Printf("[negotiation] add remote SDP line: %s", bitrateSet)
			b.WriteString(bitrateSet)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}
