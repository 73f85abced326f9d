// Package room converts a room join URL into the set of signaling
// parameters to use with that room.
package room

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"roomrtc/client/internal/domain"
	"roomrtc/client/internal/transport"
)

const turnHTTPTimeout = 5 * time.Second

// joinResponse is the top-level envelope returned by the join endpoint.
// The params field is itself string-encoded JSON.
type joinResponse struct {
	Result string `json:"result"`
	Params string `json:"params"`
}

type joinParams struct {
	RoomID       string `json:"room_id"`
	ClientID     string `json:"client_id"`
	WSSURL       string `json:"wss_url"`
	WSSPostURL   string `json:"wss_post_url"`
	IsInitiator  bool   `json:"is_initiator"`
	Messages     string `json:"messages"`
	PCConfig     string `json:"pc_config"`
	IceServerURL string `json:"ice_server_url"`
}

// signalMessage covers every inner message shape found in the join
// response messages array.
type signalMessage struct {
	Type      string `json:"type"`
	SDP       string `json:"sdp"`
	ID        string `json:"id"`
	Label     int    `json:"label"`
	Candidate string `json:"candidate"`
}

type pcConfig struct {
	IceServers []struct {
		URLs       string `json:"urls"`
		Credential string `json:"credential"`
	} `json:"iceServers"`
}

type turnResponse struct {
	IceServers []struct {
		URLs       []string `json:"urls"`
		Username   string   `json:"username"`
		Credential string   `json:"credential"`
	} `json:"iceServers"`
}

// Fetcher resolves room join URLs into signaling parameters.
// It implements domain.ParameterFetcher.
type Fetcher struct{}

func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// Fetch POSTs the join request and parses the response. When the room's
// embedded ICE configuration carries no TURN URI, relay credentials are
// fetched from the auxiliary endpoint named in the response; a failure
// there aborts the whole fetch.
func (f *Fetcher) Fetch(joinURL, joinPayload string) (*domain.SignalingParameters, error) {
	log.Printf("[room] connecting to room: %s", joinURL)

	response, err := transport.Do("POST", joinURL, joinPayload, "")
	if err != nil {
		return nil, fmt.Errorf("room connection error: %w", err)
	}

	return parseJoinResponse(response)
}

func parseJoinResponse(response string) (*domain.SignalingParameters, error) {
	var envelope joinResponse
	if err := json.Unmarshal([]byte(response), &envelope); err != nil {
		return nil, fmt.Errorf("room JSON parsing error: %w", err)
	}
	if envelope.Result != "SUCCESS" {
		return nil, fmt.Errorf("room response error: %s", envelope.Result)
	}

	var params joinParams
	if err := json.Unmarshal([]byte(envelope.Params), &params); err != nil {
		return nil, fmt.Errorf("room JSON parsing error: %w", err)
	}

	var offerSDP *domain.SessionDescription
	var candidates []domain.IceCandidate
	if !params.IsInitiator {
		candidates = []domain.IceCandidate{}
		var messages []string
		if err := json.Unmarshal([]byte(params.Messages), &messages); err != nil {
			return nil, fmt.Errorf("room messages parsing error: %w", err)
		}
		for i, raw := range messages {
			var msg signalMessage
			if err := json.Unmarshal([]byte(raw), &msg); err != nil {
				return nil, fmt.Errorf("room message %d parsing error: %w", i, err)
			}
			log.Printf("[room] server->C #%d: %s", i, raw)
			switch msg.Type {
			case "offer":
				if offerSDP != nil {
					log.Printf("[room] duplicate offer in room response, keeping the last one")
				}
				offerSDP = &domain.SessionDescription{Type: msg.Type, SDP: msg.SDP}
			case "candidate":
				candidates = append(candidates, domain.IceCandidate{
					ID:        msg.ID,
					Label:     msg.Label,
					Candidate: msg.Candidate,
				})
			default:
				log.Printf("[room] unknown message: %s", raw)
			}
		}
	}

	iceServers, err := iceServersFromPCConfig(params.PCConfig)
	if err != nil {
		return nil, err
	}

	turnPresent := false
	for _, server := range iceServers {
		log.Printf("[room] ice server: %s", server.URI)
		if strings.HasPrefix(server.URI, "turn:") {
			turnPresent = true
			break
		}
	}
	if !turnPresent {
		turnServers, err := requestTurnServers(params.IceServerURL)
		if err != nil {
			return nil, err
		}
		for _, server := range turnServers {
			log.Printf("[room] turn server: %s", server.URI)
		}
		iceServers = append(iceServers, turnServers...)
	}

	log.Printf("[room] room id: %s, client id: %s, initiator: %v", params.RoomID, params.ClientID, params.IsInitiator)
	log.Printf("[room] wss url: %s, wss post url: %s", params.WSSURL, params.WSSPostURL)

	return &domain.SignalingParameters{
		IceServers:    iceServers,
		Initiator:     params.IsInitiator,
		ClientID:      params.ClientID,
		WSSURL:        params.WSSURL,
		WSSPostURL:    params.WSSPostURL,
		OfferSDP:      offerSDP,
		IceCandidates: candidates,
	}, nil
}

// iceServersFromPCConfig returns the ICE servers described by the room's
// peer-connection configuration string.
func iceServersFromPCConfig(config string) ([]domain.IceServer, error) {
	var parsed pcConfig
	if err := json.Unmarshal([]byte(config), &parsed); err != nil {
		return nil, fmt.Errorf("pc_config parsing error: %w", err)
	}

	servers := make([]domain.IceServer, 0, len(parsed.IceServers))
	for _, server := range parsed.IceServers {
		servers = append(servers, domain.IceServer{
			URI:        server.URLs,
			Credential: server.Credential,
		})
	}
	return servers, nil
}

// requestTurnServers fetches relay credentials from the auxiliary
// endpoint. The request uses a shorter timeout than the join request.
func requestTurnServers(turnURL string) ([]domain.IceServer, error) {
	log.Printf("[room] requesting TURN from: %s", turnURL)

	req, err := http.NewRequest("POST", turnURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create TURN request: %w", err)
	}
	req.Header.Set("REFERER", "https://appr.tc")

	client := &http.Client{Timeout: turnHTTPTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TURN request to %s: %w", turnURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read TURN response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 response when requesting TURN server from %s : %d", turnURL, resp.StatusCode)
	}

	var parsed turnResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("TURN response parsing error: %w", err)
	}

	var servers []domain.IceServer
	for _, server := range parsed.IceServers {
		for _, uri := range server.URLs {
			servers = append(servers, domain.IceServer{
				URI:        uri,
				Username:   server.Username,
				Credential: server.Credential,
			})
		}
	}
	return servers, nil
}
