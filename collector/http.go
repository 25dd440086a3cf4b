package collector

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/pollscribe/pollscribe/store"
	"github.com/pollscribe/pollscribe/transcript"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

type wsConnection struct {
	conn      *websocket.Conn
	meetingID string
	send      chan []byte
	collector *Collector
	closeOnce sync.Once
}

type ingestRequest struct {
	MeetingID     string                `json:"meetingId"`
	Role          string                `json:"role"`
	ParticipantID string                `json:"participantId"`
	Transcripts   []transcript.Fragment `json:"transcripts"`
}

type ingestResponse struct {
	Saved int `json:"savedCount"`
}

type saveSegmentRequest struct {
	MeetingID      string `json:"meetingId"`
	Hostmail       string `json:"hostmail"`
	TranscriptText string `json:"transcriptText"`
}

type saveSegmentResponse struct {
	SegmentNumber int `json:"segmentNumber"`
}

type lastSegmentResponse struct {
	TranscriptText string    `json:"transcriptText"`
	SequenceNumber int       `json:"sequenceNumber"`
	SavedAt        time.Time `json:"savedAt"`
}

type summaryResponse struct {
	MeetingID  string           `json:"meetingId"`
	Summary    store.Summary    `json:"summary"`
	Capability store.Capability `json:"capability"`
}

type wsMessage struct {
	Type      string              `json:"type"`
	MeetingID string              `json:"meetingId"`
	Timestamp time.Time           `json:"timestamp"`
	Payload   transcript.Fragment `json:"payload"`
}

// Handler builds the HTTP routing table.
func (c *Collector) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/transcripts", c.handleIngest).Methods("POST")
	router.HandleFunc("/segments/save", c.handleSaveSegment).Methods("POST")
	router.HandleFunc("/segments/last/{meetingID}", c.handleLastSegment).Methods("GET")
	router.HandleFunc("/api/meetings/{meetingID}/summary", c.handleSummary).Methods("GET")
	router.HandleFunc("/ws/{meetingID}", c.handleWebSocket)

	return router
}

func (c *Collector) startHTTP(ctx context.Context) error {
	c.server = &http.Server{
		Addr:    c.config.Addr,
		Handler: c.Handler(),
	}

	go func() {
		if err := c.server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("collector listening", "addr", c.config.Addr)

	<-ctx.Done()
	return c.server.Shutdown(context.Background())
}

// handleIngest accepts a batch of fragments for one meeting, persists
// them, and fans them out to websocket subscribers.
func (c *Collector) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MeetingID == "" {
		http.Error(w, "meetingId is required", http.StatusBadRequest)
		return
	}

	saved := 0
	for _, f := range req.Transcripts {
		if f.MeetingID == "" {
			f.MeetingID = req.MeetingID
		}
		if f.ParticipantID == "" {
			f.ParticipantID = req.ParticipantID
		}
		if f.Speaker == "" {
			f.Speaker = transcript.SpeakerFromRole(req.Role)
		}

		stored, err := c.store.Append(f)
		if err != nil {
			slog.Error("failed to store fragment",
				"error", err,
				"meetingID", f.MeetingID)
			http.Error(w, "storage failure", http.StatusInternalServerError)
			return
		}
		saved++
		c.broadcast(stored)
	}

	slog.Debug("ingested transcript batch",
		"meetingID", req.MeetingID,
		"count", saved)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ingestResponse{Saved: saved})
}

func (c *Collector) handleSaveSegment(w http.ResponseWriter, r *http.Request) {
	var req saveSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MeetingID == "" || strings.TrimSpace(req.TranscriptText) == "" {
		http.Error(w, "meetingId and transcriptText are required", http.StatusBadRequest)
		return
	}

	number, err := c.store.SaveSegment(req.MeetingID, req.TranscriptText)
	if err != nil {
		slog.Error("failed to save segment",
			"error", err,
			"meetingID", req.MeetingID)
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}

	slog.Info("segment saved",
		"meetingID", req.MeetingID,
		"hostmail", req.Hostmail,
		"segmentNumber", number)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(saveSegmentResponse{SegmentNumber: number})
}

func (c *Collector) handleLastSegment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	meetingID := vars["meetingID"]

	seg, err := c.store.LastSegment(meetingID)
	if err != nil {
		slog.Error("failed to load last segment",
			"error", err,
			"meetingID", meetingID)
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	if seg == nil {
		http.Error(w, "no segments for meeting", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lastSegmentResponse{
		TranscriptText: seg.Text,
		SequenceNumber: seg.SequenceNumber,
		SavedAt:        seg.SavedAt,
	})
}

func (c *Collector) handleSummary(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	meetingID := vars["meetingID"]

	sum, err := c.store.Summarize(meetingID)
	if err != nil {
		slog.Error("failed to summarize meeting",
			"error", err,
			"meetingID", meetingID)
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaryResponse{
		MeetingID:  meetingID,
		Summary:    sum,
		Capability: store.QuestionCapability(sum),
	})
}

func (c *Collector) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	meetingID := vars["meetingID"]

	if meetingID == "" {
		http.Error(w, "meeting ID is required", http.StatusBadRequest)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	wsConn := &wsConnection{
		conn:      conn,
		meetingID: meetingID,
		send:      make(chan []byte, 256),
		collector: c,
	}

	c.registerSubscriber(meetingID, wsConn)

	go wsConn.writePump()
	go wsConn.readPump()
}

// broadcast sends a stored fragment to every subscriber of its meeting.
func (c *Collector) broadcast(f transcript.Fragment) {
	msg := wsMessage{
		Type:      "fragment",
		MeetingID: f.MeetingID,
		Timestamp: time.Now(),
		Payload:   f,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal fanout message", "error", err)
		return
	}

	value, ok := c.subscribers.Load(f.MeetingID)
	if !ok {
		return
	}
	connections := value.([]*wsConnection)
	for i, conn := range connections {
		select {
		case conn.send <- data:
		default:
			slog.Warn("failed to send to subscriber - channel full",
				"meetingID", f.MeetingID,
				"connectionIndex", i)
		}
	}
}

func (c *Collector) registerSubscriber(meetingID string, wsConn *wsConnection) {
	value, _ := c.subscribers.LoadOrStore(meetingID, make([]*wsConnection, 0))
	connections := value.([]*wsConnection)
	connections = append(connections, wsConn)
	c.subscribers.Store(meetingID, connections)
}

func (c *Collector) unregisterSubscriber(meetingID string, wsConn *wsConnection) {
	value, ok := c.subscribers.Load(meetingID)
	if !ok {
		return
	}

	connections := value.([]*wsConnection)
	for i, conn := range connections {
		if conn == wsConn {
			connections = append(connections[:i], connections[i+1:]...)
			break
		}
	}

	if len(connections) == 0 {
		c.subscribers.Delete(meetingID)
	} else {
		c.subscribers.Store(meetingID, connections)
	}
}

func (w *wsConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case message, ok := <-w.send:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				w.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			wr, err := w.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			wr.Write(message)

			if err := wr.Close(); err != nil {
				return
			}
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (w *wsConnection) readPump() {
	defer func() {
		w.collector.unregisterSubscriber(w.meetingID, w)
		w.conn.Close()
	}()

	w.conn.SetReadLimit(512)
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read error", "error", err)
			}
			break
		}
	}
}
