// Package fakeapi is an in-memory chat API server. It serves the same routes,
// payload shapes, session cookie and rotating anti-forgery token as the real
// backend, and is used by package tests and by cmd/fakeapi for local work.
package fakeapi

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/pkg/jwt"
	"github.com/weiawesome/chat-client/pkg/log"
	"github.com/weiawesome/chat-client/pkg/middleware"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "123456"

// SeedUsers are created, in order, by every (re)seed.
var SeedUsers = []string{"garfield", "sennacy"}

var mentionPattern = regexp.MustCompile(`@(\w+)`)

type Config struct {
	TokenSecret string
	TokenTTL    time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type account struct {
	user   domain.User
	digest []byte
}

type sequences struct {
	users, rooms, messages, mentions domain.ID
}

// Server holds the whole database in memory.
type Server struct {
	cfg    Config
	tokens *jwt.Manager
	logger zerolog.Logger
	engine *gin.Engine

	mu       sync.Mutex
	users    map[domain.ID]*account
	rooms    map[domain.ID]domain.Room
	messages map[domain.ID]domain.Message
	mentions map[domain.ID]domain.Mention
	sessions map[string]domain.ID
	seq      sequences
	last     time.Time
}

// New creates a seeded server.
func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	tokens, err := jwt.NewManager(cfg.TokenSecret, cfg.TokenTTL, "chat-fakeapi")
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		tokens: tokens,
		logger: logger.With().Str(log.FieldComponent, "fakeapi").Logger(),
	}
	if err := s.Reseed(); err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(log.GinMiddleware(s.logger))
	s.RegisterRoutes(engine)
	s.engine = engine

	return s, nil
}

// Handler returns the HTTP handler serving the API under /api/.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Reseed drops every record and every login session, then recreates the seed
// data with ids starting from 1 again. Clients still holding a session cookie
// become anonymous.
func (s *Server) Reseed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = map[domain.ID]*account{}
	s.rooms = map[domain.ID]domain.Room{}
	s.messages = map[domain.ID]domain.Message{}
	s.mentions = map[domain.ID]domain.Mention{}
	s.sessions = map[string]domain.ID{}
	s.seq = sequences{}

	var owners []domain.User
	for _, name := range SeedUsers {
		u, err := s.createUserLocked(name, SeedPassword)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", name, err)
		}
		owners = append(owners, u)
	}

	var rooms []domain.Room
	for _, owner := range owners {
		rooms = append(rooms, s.createRoomLocked(capitalize(owner.Username)+"'s First Room", owner.ID))
	}

	for _, author := range owners {
		for _, room := range rooms {
			s.createMessageLocked(room.ID, author.ID, "hello")
		}
	}

	s.logger.Info().Int("users", len(s.users)).Int("rooms", len(s.rooms)).Msg("database seeded")
	return nil
}

// Resolve implements middleware.SessionResolver.
func (s *Server) Resolve(sessionID string) (int64, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.sessions[sessionID]
	if !ok {
		return 0, "", false
	}
	acct, ok := s.users[id]
	if !ok {
		return 0, "", false
	}
	return int64(acct.user.ID), acct.user.Username, true
}

var _ middleware.SessionResolver = (*Server)(nil)

func (s *Server) createUserLocked(username, password string) (domain.User, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return domain.User{}, err
	}
	s.seq.users++
	u := domain.User{ID: s.seq.users, Username: username}
	s.users[u.ID] = &account{user: u, digest: digest}
	return u, nil
}

func (s *Server) createRoomLocked(name string, owner domain.ID) domain.Room {
	s.seq.rooms++
	r := domain.Room{ID: s.seq.rooms, Name: name, OwnerID: owner}
	s.rooms[r.ID] = r
	return r
}

// createMessageLocked stores a message and one mention per distinct user
// named with @username in its body.
func (s *Server) createMessageLocked(room, author domain.ID, body string) domain.Message {
	s.seq.messages++
	m := domain.Message{
		ID:        s.seq.messages,
		RoomID:    room,
		AuthorID:  author,
		Body:      body,
		CreatedAt: s.stampLocked(),
	}
	s.messages[m.ID] = m

	seen := map[domain.ID]bool{}
	for _, match := range mentionPattern.FindAllStringSubmatch(body, -1) {
		acct := s.findUserLocked(match[1])
		if acct == nil || seen[acct.user.ID] {
			continue
		}
		seen[acct.user.ID] = true
		s.seq.mentions++
		s.mentions[s.seq.mentions] = domain.Mention{
			ID:        s.seq.mentions,
			UserID:    acct.user.ID,
			MessageID: m.ID,
		}
	}
	return m
}

func (s *Server) deleteMessageLocked(id domain.ID) {
	delete(s.messages, id)
	for mid, mention := range s.mentions {
		if mention.MessageID == id {
			delete(s.mentions, mid)
		}
	}
}

func (s *Server) findUserLocked(username string) *account {
	for _, acct := range s.users {
		if strings.EqualFold(acct.user.Username, username) {
			return acct
		}
	}
	return nil
}

// stampLocked returns strictly increasing creation times.
func (s *Server) stampLocked() time.Time {
	t := time.Now().UTC().Truncate(time.Millisecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Millisecond)
	}
	s.last = t
	return t
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
