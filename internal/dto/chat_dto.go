package dto

import (
	"github.com/mitcstore/mitc-api/internal/models"
)

// Websocket frame types.
const (
	FrameSelectThread = "select_thread"
	FrameCreateThread = "create_thread"
	FrameSend         = "send"
	FrameThreads      = "threads"
	FrameMessages     = "messages"
	FrameActiveThread = "active_thread"
	FrameError        = "error"
)

// CreateThreadRequest opens a support thread, optionally with a counterparty.
type CreateThreadRequest struct {
	CounterpartyID string `json:"counterpartyId" validate:"omitempty,max=64"`
}

// SendMessageRequest posts a message. Timestamp is the sender clock in milliseconds; zero means now.
type SendMessageRequest struct {
	Text      string `json:"text" validate:"required,max=4000"`
	Timestamp int64  `json:"timestamp" validate:"gte=0"`
}

// ThreadStatusRequest changes a thread status.
type ThreadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open closed"`
}

// LastMessageResponse is the preview of the newest message in a thread.
type LastMessageResponse struct {
	Text      string `json:"text"`
	SenderID  string `json:"senderId"`
	Timestamp int64  `json:"timestamp"`
}

// ThreadResponse is the serialized thread.
type ThreadResponse struct {
	ID           string               `json:"id"`
	Participants []string             `json:"participants"`
	Status       string               `json:"status"`
	CreatedAt    int64                `json:"createdAt"`
	LastMessage  *LastMessageResponse `json:"lastMessage,omitempty"`
}

// MessageResponse is the serialized message.
type MessageResponse struct {
	ID        uint   `json:"id"`
	ThreadID  string `json:"threadId"`
	SenderID  string `json:"senderId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Deleted   bool   `json:"deleted"`
	Type      string `json:"type"`
}

// ClientFrame is a command received over the chat websocket.
type ClientFrame struct {
	Type           string `json:"type"`
	ThreadID       string `json:"threadId,omitempty"`
	CounterpartyID string `json:"counterpartyId,omitempty"`
	Text           string `json:"text,omitempty"`
	Timestamp      int64  `json:"timestamp,omitempty"`
}

// Frame is a message pushed to the chat websocket client.
type Frame interface {
	FrameType() string
}

// ThreadsFrame carries the full thread list snapshot.
type ThreadsFrame struct {
	Type    string           `json:"type"`
	Threads []ThreadResponse `json:"threads"`
}

// MessagesFrame carries the full message feed of the active thread.
type MessagesFrame struct {
	Type     string            `json:"type"`
	ThreadID string            `json:"threadId"`
	Messages []MessageResponse `json:"messages"`
}

// ActiveThreadFrame announces the thread the session is attached to. An empty id means none.
type ActiveThreadFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId"`
}

// ErrorFrame reports a failed command. The connection stays open.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ThreadsFrame) FrameType() string      { return FrameThreads }
func (MessagesFrame) FrameType() string     { return FrameMessages }
func (ActiveThreadFrame) FrameType() string { return FrameActiveThread }
func (ErrorFrame) FrameType() string        { return FrameError }

// NewThreadsFrame wraps a thread list snapshot.
func NewThreadsFrame(threads []ThreadResponse) ThreadsFrame {
	if threads == nil {
		threads = []ThreadResponse{}
	}
	return ThreadsFrame{Type: FrameThreads, Threads: threads}
}

// NewMessagesFrame wraps a message feed snapshot.
func NewMessagesFrame(threadID string, messages []MessageResponse) MessagesFrame {
	if messages == nil {
		messages = []MessageResponse{}
	}
	return MessagesFrame{Type: FrameMessages, ThreadID: threadID, Messages: messages}
}

// NewActiveThreadFrame reports the active thread id.
func NewActiveThreadFrame(threadID string) ActiveThreadFrame {
	return ActiveThreadFrame{Type: FrameActiveThread, ThreadID: threadID}
}

// NewErrorFrame reports a failure to the client.
func NewErrorFrame(code, message string) ErrorFrame {
	return ErrorFrame{Type: FrameError, Code: code, Message: message}
}

// NewThreadResponse converts a thread model into a DTO.
func NewThreadResponse(thread models.Thread) ThreadResponse {
	response := ThreadResponse{
		ID:           thread.ID,
		Participants: thread.ParticipantIDs(),
		Status:       thread.Status,
		CreatedAt:    thread.CreatedAt,
	}
	if thread.LastMessageSender != "" {
		response.LastMessage = &LastMessageResponse{
			Text:      thread.LastMessageText,
			SenderID:  thread.LastMessageSender,
			Timestamp: thread.LastMessageAt,
		}
	}
	return response
}

// NewThreadResponseSlice converts threads into DTOs.
func NewThreadResponseSlice(threads []models.Thread) []ThreadResponse {
	out := make([]ThreadResponse, 0, len(threads))
	for _, thread := range threads {
		out = append(out, NewThreadResponse(thread))
	}
	return out
}

// NewMessageResponse converts a message model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	return MessageResponse{
		ID:        message.ID,
		ThreadID:  message.ThreadID,
		SenderID:  message.SenderID,
		Text:      message.Text,
		Timestamp: message.Timestamp,
		Deleted:   message.Deleted,
		Type:      message.Type,
	}
}

// NewMessageResponseSlice converts messages into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}
