package negotiation

import (
	"strings"
	"testing"
)

func TestPreferCodec_ReordersAudioPayloads(t *testing.T) {
	sdp := strings.Join([]string{
		"v=0",
		"o=- 0 0 IN IP4 127.0.0.1",
		"m=audio 9 UDP/TLS/RTP/SAVPF 104 103",
		"a=rtpmap:104 opus/48000/2",
		"a=rtpmap:103 ISAC/16000",
	}, "\r\n") + "\r\n"

	got := PreferCodec(sdp, "ISAC", true)

	want := strings.Join([]string{
		"v=0",
		"o=- 0 0 IN IP4 127.0.0.1",
		"m=audio 9 UDP/TLS/RTP/SAVPF 103 104",
		"a=rtpmap:104 opus/48000/2",
		"a=rtpmap:103 ISAC/16000",
	}, "\r\n") + "\r\n"
	if got != want {
		t.Errorf("expected:\n%q\ngot:\n%q", want, got)
	}
}

func TestPreferCodec_ReordersVideoPayloads(t *testing.T) {
	sdp := strings.Join([]string{
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"a=rtpmap:111 opus/48000/2",
		"m=video 9 UDP/TLS/RTP/SAVPF 96 98 100",
		"a=rtpmap:96 VP8/90000",
		"a=rtpmap:98 VP9/90000",
		"a=rtpmap:100 H264/90000",
	}, "\r\n") + "\r\n"

	got := PreferCodec(sdp, "VP9", false)

	if !strings.Contains(got, "m=video 9 UDP/TLS/RTP/SAVPF 98 96 100\r\n") {
		t.Errorf("expected VP9 payload first in m=video line, got:\n%q", got)
	}
	if !strings.Contains(got, "m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n") {
		t.Errorf("audio m-line should be untouched, got:\n%q", got)
	}
}

func TestPreferCodec_NoRtpmap_Unmodified(t *testing.T) {
	sdp := "m=audio 9 UDP/TLS/RTP/SAVPF 104\r\na=rtpmap:104 opus/48000/2\r\n"

	if got := PreferCodec(sdp, "ISAC", true); got != sdp {
		t.Errorf("expected SDP unmodified, got:\n%q", got)
	}
}

func TestPreferCodec_NoMediaLine_Unmodified(t *testing.T) {
	sdp := "v=0\r\na=rtpmap:103 ISAC/16000\r\n"

	if got := PreferCodec(sdp, "ISAC", true); got != sdp {
		t.Errorf("expected SDP unmodified, got:\n%q", got)
	}
}

func TestSetStartBitrate_InsertsAudioFmtpAfterRtpmap(t *testing.T) {
	sdp := strings.Join([]string{
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"a=rtpmap:111 opus/48000/2",
		"a=rtcp-fb:111 transport-cc",
	}, "\r\n") + "\r\n"

	got := SetStartBitrate("opus", false, sdp, 32)

	want := strings.Join([]string{
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"a=rtpmap:111 opus/48000/2",
		"a=fmtp:111 maxaveragebitrate=32000",
		"a=rtcp-fb:111 transport-cc",
	}, "\r\n") + "\r\n"
	if got != want {
		t.Errorf("expected:\n%q\ngot:\n%q", want, got)
	}
}

func TestSetStartBitrate_AppendsToExistingFmtp(t *testing.T) {
	sdp := strings.Join([]string{
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"a=rtpmap:111 opus/48000/2",
		"a=fmtp:111 minptime=10",
	}, "\r\n") + "\r\n"

	got := SetStartBitrate("opus", false, sdp, 32)

	if !strings.Contains(got, "a=fmtp:111 minptime=10; maxaveragebitrate=32000\r\n") {
		t.Errorf("expected bitrate appended to existing fmtp line, got:\n%q", got)
	}
	if strings.Count(got, "a=fmtp:111") != 1 {
		t.Errorf("expected a single fmtp line, got:\n%q", got)
	}
}

func TestSetStartBitrate_VideoStaysInKbps(t *testing.T) {
	sdp := strings.Join([]string{
		"m=video 9 UDP/TLS/RTP/SAVPF 96",
		"a=rtpmap:96 VP8/90000",
	}, "\r\n") + "\r\n"

	got := SetStartBitrate("VP8", true, sdp, 500)

	if !strings.Contains(got, "a=fmtp:96 x-google-start-bitrate=500\r\n") {
		t.Errorf("expected video bitrate in kbps, got:\n%q", got)
	}
}

func TestSetStartBitrate_NoRtpmap_Unmodified(t *testing.T) {
	sdp := "m=audio 9 UDP/TLS/RTP/SAVPF 0\r\na=rtpmap:0 PCMU/8000\r\n"

	if got := SetStartBitrate("opus", false, sdp, 32); got != sdp {
		t.Errorf("expected SDP unmodified, got:\n%q", got)
	}
}
