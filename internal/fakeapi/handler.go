package fakeapi

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/pkg/log"
	"github.com/weiawesome/chat-client/pkg/middleware"
	"github.com/weiawesome/chat-client/pkg/response"
)

const invalidCredentials = "The provided credentials were invalid."

// RegisterRoutes registers all routes.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.Use(middleware.Session(s), middleware.CSRF(s.tokens))
	{
		users := api.Group("/users")
		{
			users.POST("", s.CreateUser)
			users.POST("/login", s.Login)
			users.DELETE("/logout", middleware.RequireAuth(), s.Logout)
			users.GET("/restore_user", s.RestoreUser)
		}

		api.GET("/rooms", s.ListRooms)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.RequireAuth())
		{
			protected.GET("/rooms/:id", s.GetRoom)
			protected.POST("/rooms", s.CreateRoom)
			protected.DELETE("/rooms/:id", s.DeleteRoom)
			protected.POST("/messages", s.CreateMessage)
			protected.DELETE("/messages/:id", s.DeleteMessage)
			protected.GET("/mentions", s.ListMentions)
			protected.PATCH("/mentions/:id/read", s.ReadMention)
		}
	}
}

type userBody struct {
	User domain.Profile `json:"user"`
}

type userResponse struct {
	User domain.User `json:"user"`
}

// CreateUser handles signup and logs the new account in.
func (s *Server) CreateUser(c *gin.Context) {
	var req userBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	username := strings.TrimSpace(req.User.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []string
	switch {
	case username == "":
		errs = append(errs, "Username can't be blank")
	case len(username) < 3:
		errs = append(errs, "Username is too short (minimum is 3 characters)")
	case s.findUserLocked(username) != nil:
		errs = append(errs, "Username has already been taken")
	}
	if len(req.User.Password) < 6 {
		errs = append(errs, "Password is too short (minimum is 6 characters)")
	}
	if len(errs) > 0 {
		response.UnprocessableEntity(c, errs...)
		return
	}

	user, err := s.createUserLocked(username, req.User.Password)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("create user failed")
		response.InternalError(c, "failed to create user")
		return
	}
	s.sessions[middleware.GetSessionID(c)] = user.ID
	middleware.SetUser(c, int64(user.ID), user.Username)

	response.Success(c, userResponse{User: user})
}

// Login handles username/password login.
func (s *Server) Login(c *gin.Context) {
	var req userBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.findUserLocked(req.User.Username)
	if acct == nil || bcrypt.CompareHashAndPassword(acct.digest, []byte(req.User.Password)) != nil {
		l := log.Ctx(c.Request.Context())
		l.Info().Str(log.FieldUsername, req.User.Username).Msg("login rejected")
		response.Unauthorized(c, invalidCredentials)
		return
	}

	s.sessions[middleware.GetSessionID(c)] = acct.user.ID
	middleware.SetUser(c, int64(acct.user.ID), acct.user.Username)

	response.Success(c, userResponse{User: acct.user})
}

func (s *Server) Logout(c *gin.Context) {
	s.mu.Lock()
	delete(s.sessions, middleware.GetSessionID(c))
	s.mu.Unlock()

	response.Empty(c)
}

// RestoreUser answers with the session's user, or an empty body.
func (s *Server) RestoreUser(c *gin.Context) {
	id := domain.ID(middleware.GetUserID(c))
	if id == 0 {
		response.Empty(c)
		return
	}

	s.mu.Lock()
	acct, ok := s.users[id]
	s.mu.Unlock()
	if !ok {
		response.Empty(c)
		return
	}
	response.Success(c, userResponse{User: acct.user})
}

func (s *Server) ListRooms(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make(map[domain.ID]domain.Room, len(s.rooms))
	users := map[domain.ID]domain.User{}
	for id, room := range s.rooms {
		rooms[id] = room
		s.addUserLocked(users, room.OwnerID)
	}

	response.Success(c, gin.H{"rooms": rooms, "users": users})
}

func (s *Server) GetRoom(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		response.NotFound(c, "Room not found")
		return
	}

	messages := map[domain.ID]domain.Message{}
	users := map[domain.ID]domain.User{}
	s.addUserLocked(users, room.OwnerID)
	for mid, msg := range s.messages {
		if msg.RoomID != id {
			continue
		}
		messages[mid] = msg
		s.addUserLocked(users, msg.AuthorID)
		for _, mention := range s.mentions {
			if mention.MessageID == mid {
				s.addUserLocked(users, mention.UserID)
			}
		}
	}

	response.Success(c, gin.H{"room": room, "messages": messages, "users": users})
}

func (s *Server) CreateRoom(c *gin.Context) {
	var req struct {
		Room domain.CreateRoomRequest `json:"room"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	name := strings.TrimSpace(req.Room.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []string
	if _, ok := s.users[req.Room.OwnerID]; !ok {
		errs = append(errs, "Owner must exist")
	}
	if name == "" {
		errs = append(errs, "Name can't be blank")
	}
	if len(errs) > 0 {
		response.UnprocessableEntity(c, errs...)
		return
	}

	response.Success(c, s.createRoomLocked(name, req.Room.OwnerID))
}

// DeleteRoom destroys a room with its messages and their mentions.
func (s *Server) DeleteRoom(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		response.NotFound(c, "Room not found")
		return
	}
	for mid, msg := range s.messages {
		if msg.RoomID == id {
			s.deleteMessageLocked(mid)
		}
	}
	delete(s.rooms, id)

	response.Empty(c)
}

func (s *Server) CreateMessage(c *gin.Context) {
	var req struct {
		Message domain.CreateMessageRequest `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	author := domain.ID(middleware.GetUserID(c))

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []string
	if _, ok := s.rooms[req.Message.RoomID]; !ok {
		errs = append(errs, "Room must exist")
	}
	if strings.TrimSpace(req.Message.Body) == "" {
		errs = append(errs, "Body can't be blank")
	}
	if len(errs) > 0 {
		response.UnprocessableEntity(c, errs...)
		return
	}

	response.Success(c, s.createMessageLocked(req.Message.RoomID, author, req.Message.Body))
}

func (s *Server) DeleteMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		response.NotFound(c, "Message not found")
		return
	}
	s.deleteMessageLocked(id)

	response.Empty(c)
}

// ListMentions returns the caller's mentions with their messages and authors.
func (s *Server) ListMentions(c *gin.Context) {
	me := domain.ID(middleware.GetUserID(c))

	s.mu.Lock()
	defer s.mu.Unlock()

	mentions := map[domain.ID]domain.Mention{}
	messages := map[domain.ID]domain.Message{}
	users := map[domain.ID]domain.User{}
	for id, mention := range s.mentions {
		if mention.UserID != me {
			continue
		}
		msg, ok := s.messages[mention.MessageID]
		if !ok {
			continue
		}
		mentions[id] = mention
		messages[msg.ID] = msg
		s.addUserLocked(users, msg.AuthorID)
	}

	response.Success(c, gin.H{"mentions": mentions, "messages": messages, "users": users})
}

// ReadMention marks one of the caller's mentions read. Repeated calls succeed.
func (s *Server) ReadMention(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	me := domain.ID(middleware.GetUserID(c))

	s.mu.Lock()
	defer s.mu.Unlock()

	mention, ok := s.mentions[id]
	if !ok || mention.UserID != me {
		response.NotFound(c, "Mention not found")
		return
	}
	mention.Read = true
	s.mentions[id] = mention

	response.Success(c, mention)
}

func (s *Server) addUserLocked(users map[domain.ID]domain.User, id domain.ID) {
	if acct, ok := s.users[id]; ok {
		users[id] = acct.user
	}
}

func pathID(c *gin.Context) (domain.ID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.NotFound(c, "Record not found")
		return 0, false
	}
	return domain.ID(id), true
}
