package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/rag"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

// Message types sent to the client.
const (
	MsgStatus   = "status"
	MsgStream   = "stream"
	MsgResponse = "response"
	MsgError    = "error"
)

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msgType, content string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(Message{Type: msgType, Content: content, Data: data})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &wsConn{conn: conn}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Msg("websocket read ended")
			}
			cancel()
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.reply(c, MsgError, "invalid message", nil)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, c, msg)
		}()
	}
}

func (s *Server) handleMessage(ctx context.Context, c *wsConn, msg Message) {
	query := strings.TrimSpace(msg.Content)
	if query == "" {
		s.reply(c, MsgError, "Please provide input", nil)
		return
	}

	if url := urlRegex.FindString(query); url != "" {
		if s.deps.Ingester == nil {
			s.reply(c, MsgError, "URL ingestion is disabled", nil)
			return
		}
		s.reply(c, MsgStatus, fmt.Sprintf("Processing URL: %s", url), nil)
		report, err := s.deps.Ingester.IngestURL(ctx, url)
		if err != nil {
			s.reply(c, MsgError, fmt.Sprintf("Failed to ingest URL: %v", err), nil)
			return
		}
		s.reply(c, MsgStatus, fmt.Sprintf("Ingested %d text chunks", report.Chunks), report)

		query = strings.TrimSpace(strings.Replace(query, url, "", 1))
		if query == "" {
			return
		}
	}

	if s.deps.Retriever == nil || s.deps.Chat == nil {
		ans, err := s.deps.Answerer.AnswerTopK(ctx, query, 0)
		if err != nil {
			s.reply(c, MsgError, fmt.Sprintf("Error: %v", err), nil)
			return
		}
		s.reply(c, MsgResponse, ans.Text, ans.Sources)
		return
	}

	results, err := s.deps.Retriever.Retrieve(ctx, query, 0)
	if err != nil {
		s.reply(c, MsgError, fmt.Sprintf("Error querying documents: %v", err), nil)
		return
	}
	docs := make([]models.Document, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	sources := rag.Sources(results)

	if !s.config.Streaming {
		response, err := s.deps.Chat.Chat(ctx, query, docs)
		if err != nil {
			s.reply(c, MsgError, fmt.Sprintf("Error: %v", err), nil)
			return
		}
		s.reply(c, MsgResponse, response, sources)
		return
	}

	chunks, errs := s.deps.Chat.ChatStream(ctx, query, docs)
	for chunk := range chunks {
		s.reply(c, MsgStream, chunk, nil)
	}
	if err := <-errs; err != nil {
		s.reply(c, MsgError, fmt.Sprintf("Error: %v", err), nil)
		return
	}
	s.reply(c, MsgResponse, "", sources)
}

func (s *Server) reply(c *wsConn, msgType, content string, data interface{}) {
	if err := c.send(msgType, content, data); err != nil {
		s.logger.Debug().Err(err).Str("type", msgType).Msg("websocket write failed")
	}
}
