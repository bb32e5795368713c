package run

import (
	"encoding/json"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

type ClientMessageType string

const (
	ClientAck        ClientMessageType = "ACK"
	ClientRegister   ClientMessageType = "REGISTER"
	ClientUnregister ClientMessageType = "UNREGISTER"
	ClientPing       ClientMessageType = "PING"
)

// ClientMessage is an inbound WebSocket message, routed to the owning
// manager by RunID.
type ClientMessage struct {
	RunID string            `json:"run_id"`
	Type  ClientMessageType `json:"type"`
}

type ServerMessageType string

const (
	ServerCompetitionStart  ServerMessageType = "COMPETITION_START"
	ServerCompetitionEnd    ServerMessageType = "COMPETITION_END"
	ServerCompetitionUpdate ServerMessageType = "COMPETITION_UPDATE"
	ServerTaskPrepare       ServerMessageType = "TASK_PREPARE"
	ServerTaskStart         ServerMessageType = "TASK_START"
	ServerTaskEnd           ServerMessageType = "TASK_END"
	ServerTaskUpdated       ServerMessageType = "TASK_UPDATED"
)

// ServerMessage is an outbound broadcast to run sessions.
type ServerMessage struct {
	RunID     string                 `json:"run_id"`
	Type      ServerMessageType      `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

type queuedMessage struct {
	msg    ServerMessage
	teamID string // empty = broadcast to every session of the run
}

// MessageQueue decouples message production (under the run lock) from
// WebSocket dispatch (on the tick loop's finalize phase). Producers never
// block: when the queue is full the message is dropped, since delivery is
// best-effort and the ready latch is the authoritative sync mechanism.
type MessageQueue struct {
	q *xsync.MPMCQueueOf[queuedMessage]
}

func NewMessageQueue(capacity int) *MessageQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MessageQueue{q: xsync.NewMPMCQueueOf[queuedMessage](capacity)}
}

func (m *MessageQueue) Enqueue(msg ServerMessage, teamID string) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	if !m.q.TryEnqueue(queuedMessage{msg: msg, teamID: teamID}) {
		zap.S().Warnf("message queue for run %s full, dropping %s", msg.RunID, msg.Type)
	}
}

// Drain flushes every queued message through send. send receives the
// marshaled message and the team filter (empty for all sessions).
func (m *MessageQueue) Drain(send func(data []byte, teamID string)) {
	for {
		qm, ok := m.q.TryDequeue()
		if !ok {
			return
		}
		data, err := json.Marshal(qm.msg)
		if err != nil {
			zap.S().Errorf("failed to marshal server message: %v", err)
			continue
		}
		send(data, qm.teamID)
	}
}
