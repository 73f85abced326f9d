package config

import "testing"

func TestLoad_RequiresRoomURL(t *testing.T) {
	t.Setenv("ROOM_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when ROOM_URL is unset")
	}
}

func TestLoad_GeneratesRoomID(t *testing.T) {
	t.Setenv("ROOM_URL", "https://appr.tc")
	t.Setenv("ROOM_ID", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.RoomID) != 8 {
		t.Errorf("expected generated 8 character room id, got %q", cfg.RoomID)
	}
}

func TestLoad_ReadsAllValues(t *testing.T) {
	t.Setenv("ROOM_URL", "https://appr.tc")
	t.Setenv("ROOM_ID", "room42")
	t.Setenv("LOOPBACK", "true")
	t.Setenv("AUDIO_CODEC", "ISAC")
	t.Setenv("VIDEO_CODEC", "VP9")
	t.Setenv("AUDIO_START_BITRATE", "32")
	t.Setenv("VIDEO_START_BITRATE", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RoomURL != "https://appr.tc" || cfg.RoomID != "room42" || !cfg.Loopback {
		t.Errorf("unexpected room config: %+v", cfg)
	}
	if cfg.AudioCodec != "ISAC" || cfg.VideoCodec != "VP9" {
		t.Errorf("unexpected codec config: %+v", cfg)
	}
	if cfg.AudioStartBitrate != 32 || cfg.VideoStartBitrate != 500 {
		t.Errorf("unexpected bitrate config: %+v", cfg)
	}
}

func TestLoad_RejectsBadBitrate(t *testing.T) {
	t.Setenv("ROOM_URL", "https://appr.tc")
	t.Setenv("VIDEO_START_BITRATE", "fast")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-integer bitrate")
	}
}
