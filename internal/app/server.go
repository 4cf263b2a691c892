package app

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vaani/internal/observe"
	"github.com/MrWong99/vaani/internal/orchestrator"
	"github.com/MrWong99/vaani/internal/session"
	"github.com/MrWong99/vaani/pkg/types"
)

// SessionHeader names the conversation a POST /api/message belongs to.
const SessionHeader = "X-Session-ID"

const (
	// maxUploadBytes caps request bodies and WebSocket frames.
	maxUploadBytes = 25 << 20

	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

// messageRequest is the JSON body of POST /api/message and of WebSocket text
// frames.
type messageRequest struct {
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
}

// messageResponse is the JSON answer to a turn.
type messageResponse struct {
	Response         string `json:"response"`
	Transcription    string `json:"transcription"`
	Language         string `json:"language"`
	LanguageSource   string `json:"language_source"`
	Locale           string `json:"locale"`
	CacheHit         bool   `json:"cache_hit"`
	Audio            []byte `json:"audio,omitempty"`
	AudioContentType string `json:"audio_content_type,omitempty"`
	Session          string `json:"session,omitempty"`
}

// exitResponse answers an exit keyword.
type exitResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Response string `json:"response,omitempty"`
}

// Handler returns the HTTP API: the message endpoint, the WebSocket, the
// health probes and the Prometheus scrape endpoint, wrapped in the
// observability middleware.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/message", a.handleMessage)
	mux.HandleFunc("GET /ws", a.handleWebSocket)
	a.health.Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())
	return observe.Instrument(a.metrics, mux)
}

// Serve runs the HTTP API on the configured address together with the
// session janitor until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	slog.Info("http api listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.store.Run(gctx, sweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// handleMessage runs one turn for the session named by [SessionHeader]. The
// body is either multipart form data with an "audio" file or JSON.
func (a *App) handleMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	in, err := parseMessage(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id := r.Header.Get(SessionHeader)
	st := a.store.Get(id)
	ctx := observe.WithSession(r.Context(), cmp.Or(id, session.DefaultID))
	status, body := a.answer(ctx, st, in, "")
	if _, ok := body.(exitResponse); ok {
		a.store.Delete(id)
	}
	writeJSON(w, status, body)
}

// handleWebSocket serves one conversation per connection. Text frames carry
// a JSON messageRequest, binary frames a WAV utterance; every frame is
// answered with one JSON message. The connection closes after an exit
// keyword.
func (a *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxUploadBytes)

	id := uuid.NewString()
	ctx := observe.WithSession(r.Context(), id)
	log := observe.Logger(ctx)
	st := a.store.New()

	a.metrics.ActiveSessions.Add(ctx, 1)
	defer a.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	log.Info("websocket session opened")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Info("websocket session closed")
			default:
				log.Debug("websocket read ended", "err", err)
			}
			return
		}

		in, err := parseFrame(typ, data)
		if err != nil {
			if err := wsjson.Write(ctx, conn, errorResponse{Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		_, body := a.answer(ctx, st, in, id)
		if err := wsjson.Write(ctx, conn, body); err != nil {
			log.Debug("websocket write failed", "err", err)
			return
		}
		if _, ok := body.(exitResponse); ok {
			conn.Close(websocket.StatusNormalClosure, "conversation ended")
			return
		}
	}
}

// answer runs a turn on st and maps the outcome to a status code and body.
func (a *App) answer(ctx context.Context, st *session.State, in orchestrator.Input, id string) (int, any) {
	st.Lock()
	res, err := a.orch.RunTurn(ctx, in, st)
	st.Unlock()

	switch {
	case errors.Is(err, orchestrator.ErrEmptyTranscript):
		return http.StatusBadRequest, errorResponse{Error: "no speech recognised"}
	case err != nil:
		body := errorResponse{Error: err.Error()}
		if res != nil {
			body.Response = res.Reply
		}
		return http.StatusBadGateway, body
	case res.Exit:
		return http.StatusOK, exitResponse{Response: exitMessage}
	}

	return http.StatusOK, messageResponse{
		Response:         res.Reply,
		Transcription:    res.Transcript,
		Language:         res.Language.Code,
		LanguageSource:   res.Language.Source.String(),
		Locale:           res.Locale,
		CacheHit:         res.CacheHit,
		Audio:            res.Audio.Data,
		AudioContentType: res.Audio.ContentType,
		Session:          id,
	}
}

// parseMessage reads the turn input from a multipart or JSON body.
func parseMessage(r *http.Request) (orchestrator.Input, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return orchestrator.Input{}, errors.New("missing or invalid Content-Type")
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return orchestrator.Input{}, fmt.Errorf("invalid multipart body: %w", err)
		}
		lang := r.FormValue("language")
		f, hdr, err := r.FormFile("audio")
		if errors.Is(err, http.ErrMissingFile) {
			msg := r.FormValue("message")
			if strings.TrimSpace(msg) == "" {
				return orchestrator.Input{}, errors.New(`form needs an "audio" file or a "message" field`)
			}
			return orchestrator.Input{Text: msg, Language: lang}, nil
		}
		if err != nil {
			return orchestrator.Input{}, fmt.Errorf("read audio: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return orchestrator.Input{}, fmt.Errorf("read audio: %w", err)
		}
		if len(data) == 0 {
			return orchestrator.Input{}, errors.New("audio file is empty")
		}
		ct := hdr.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = types.ContentTypeWAV
		}
		return orchestrator.Input{Audio: types.AudioClip{Data: data, ContentType: ct}, Language: lang}, nil

	case "application/json":
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return orchestrator.Input{}, fmt.Errorf("invalid JSON body: %w", err)
		}
		return textInput(req)

	default:
		return orchestrator.Input{}, fmt.Errorf("unsupported Content-Type %q", mediaType)
	}
}

func parseFrame(typ websocket.MessageType, data []byte) (orchestrator.Input, error) {
	if typ == websocket.MessageBinary {
		if len(data) == 0 {
			return orchestrator.Input{}, errors.New("audio frame is empty")
		}
		return orchestrator.Input{Audio: types.AudioClip{Data: data, ContentType: types.ContentTypeWAV}}, nil
	}
	var req messageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return orchestrator.Input{}, fmt.Errorf("invalid JSON frame: %w", err)
	}
	return textInput(req)
}

func textInput(req messageRequest) (orchestrator.Input, error) {
	if strings.TrimSpace(req.Message) == "" {
		return orchestrator.Input{}, errors.New(`"message" is required`)
	}
	return orchestrator.Input{Text: req.Message, Language: req.Language}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "err", err)
	}
}
