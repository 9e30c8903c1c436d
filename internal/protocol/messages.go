package protocol

import "github.com/Tnze/go-mc/chat"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	WorldPreference string `json:"world_preference,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	PlayerID        string         `json:"player_id"`
	CurrentWorldID  string         `json:"current_world_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
	WorldManifest   []WorldRef     `json:"world_manifest,omitempty"`
}

type WorldRef struct {
	WorldID   string `json:"world_id"`
	WorldType string `json:"world_type"`
	MinY      int    `json:"min_y"`
	MaxY      int    `json:"max_y"`
}

type WorldParams struct {
	TickRateHz       int    `json:"tick_rate_hz"`
	DayTicks         int    `json:"day_ticks"`
	ChunkSize        [3]int `json:"chunk_size"`
	ViewRadiusChunks int    `json:"view_radius_chunks"`
	Seed             int64  `json:"seed"`
}

type CatalogDigests struct {
	BlockPalette DigestRef `json:"block_palette"`
	ItemPalette  DigestRef `json:"item_palette"`
	EntityDigest string    `json:"entity_digest"`
	TuningDigest string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// Player action kinds carried by ACT.
const (
	ActMove  = "MOVE"
	ActDrop  = "DROP"
	ActPlace = "PLACE"
	ActGive  = "GIVE"
)

// ACT (client -> server)
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref"`
	Action          string `json:"action"`
	Pos             [3]int `json:"pos,omitempty"`
	Slot            int    `json:"slot,omitempty"`
	Item            string `json:"item,omitempty"`
	Count           int    `json:"count,omitempty"`
	WorldID         string `json:"world_id,omitempty"`
}

// ACK (server -> client): the outcome of one ACT.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
	WorldID         string `json:"world_id,omitempty"`
}

// NOTICE (server -> client): a system chat message. Text is the message
// flattened without formatting.
type NoticeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	PlayerID        string       `json:"player_id"`
	Message         chat.Message `json:"message"`
	Text            string       `json:"text"`
}
