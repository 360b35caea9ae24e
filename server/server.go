package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xhad/docbot/internal/types"
	"github.com/xhad/docbot/pkg/chatbot"
	cfgPkg "github.com/xhad/docbot/pkg/config"
	"github.com/xhad/docbot/pkg/index"
)

//go:embed static/index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// LoadedData is the payload of a "loaded" message.
type LoadedData struct {
	Count   int      `json:"count"`
	Sources []string `json:"sources"`
}

// Handler is what one websocket connection talks to.
type Handler interface {
	LoadDocuments(ctx context.Context, folder string) (*chatbot.LoadResult, error)
	SubmitQuestion(ctx context.Context, question string) (string, error)
}

// closer is implemented by handlers holding resources past the connection.
type closer interface {
	Close(ctx context.Context) error
}

// SessionFactory starts a fresh session for a new connection.
type SessionFactory func(reporter types.Reporter) (Handler, error)

type Config struct {
	Port          string
	DefaultFolder string
}

type WSServer struct {
	config     Config
	newSession SessionFactory
}

func NewWSServer(config Config, newSession SessionFactory) (*WSServer, error) {
	if newSession == nil {
		return nil, fmt.Errorf("session factory is required")
	}
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.DefaultFolder == "" {
		config.DefaultFolder = cfgPkg.DefaultFolder
	}
	return &WSServer{
		config:     config,
		newSession: newSession,
	}, nil
}

// Handler returns the routes of the web surface.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *WSServer) ListenAndServe() error {
	log.Printf("Starting WebSocket server on port %s", s.config.Port)
	return http.ListenAndServe(":"+s.config.Port, s.Handler())
}

func (s *WSServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTmpl.Execute(w, map[string]string{
		"Title":       chatbot.Title,
		"Description": chatbot.Description,
		"Folder":      s.config.DefaultFolder,
	})
	if err != nil {
		log.Printf("Error rendering index: %v", err)
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	reporter := &wsReporter{conn: conn}
	session, err := s.newSession(reporter)
	if err != nil {
		log.Printf("Failed to start session: %v", err)
		sendMessage(conn, Message{Type: "error", Content: err.Error()})
		return
	}
	if c, ok := session.(closer); ok {
		defer func() {
			if err := c.Close(context.Background()); err != nil {
				log.Printf("Failed to close session: %v", err)
			}
		}()
	}

	// Messages are handled one at a time; a question sent during a load
	// waits for the load to finish.
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Error reading message: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			sendMessage(conn, Message{Type: "error", Content: "invalid message"})
			continue
		}

		s.handleMessage(r.Context(), conn, session, msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, session Handler, msg Message) {
	switch msg.Type {
	case "load":
		folder := strings.TrimSpace(msg.Content)
		if folder == "" {
			folder = s.config.DefaultFolder
		}
		sendMessage(conn, Message{Type: "status", Content: "Downloading and processing documents from Dropbox..."})

		result, err := session.LoadDocuments(ctx, folder)
		if err != nil {
			if !errors.Is(err, chatbot.ErrNoDocuments) {
				log.Printf("Load of %s failed: %v", folder, err)
			}
			sendMessage(conn, Message{Type: "error", Content: describe(err)})
			return
		}
		sendMessage(conn, Message{
			Type:    "loaded",
			Content: fmt.Sprintf("%d documents loaded successfully.", result.Documents),
			Data:    LoadedData{Count: result.Documents, Sources: result.Sources},
		})

	case "question":
		question := strings.TrimSpace(msg.Content)
		if question == "" {
			return
		}
		sendMessage(conn, Message{Type: "status", Content: "Processing question..."})

		answer, err := session.SubmitQuestion(ctx, question)
		if err != nil {
			log.Printf("Question failed: %v", err)
			sendMessage(conn, Message{Type: "error", Content: describe(err)})
			return
		}
		sendMessage(conn, Message{Type: "response", Content: answer})

	default:
		sendMessage(conn, Message{Type: "error", Content: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, chatbot.ErrNoDocuments):
		return "No documents were found in that folder."
	case types.IsKind(err, types.QueryFault) && errors.Is(err, index.ErrNotBuilt):
		return "Load documents before asking a question."
	default:
		return err.Error()
	}
}

func sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// wsReporter forwards session progress to the connection. It is only used
// from the connection's read loop, so writes never overlap.
type wsReporter struct {
	conn *websocket.Conn
}

func (r *wsReporter) Status(msg string) {
	sendMessage(r.conn, Message{Type: "status", Content: msg})
}

func (r *wsReporter) Progress(done, total int, path string) {
	sendMessage(r.conn, Message{Type: "progress", Content: fmt.Sprintf("Processing %d/%d: %s", done, total, path)})
}

func (r *wsReporter) Error(err error) {
	sendMessage(r.conn, Message{Type: "error", Content: err.Error()})
}
