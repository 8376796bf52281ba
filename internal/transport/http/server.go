package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/auth"
	"github.com/vovakirdan/studyhub-server/internal/config"
	"github.com/vovakirdan/studyhub-server/internal/core"
	"github.com/vovakirdan/studyhub-server/internal/service/calls"
	"github.com/vovakirdan/studyhub-server/internal/service/friends"
	"github.com/vovakirdan/studyhub-server/internal/service/messages"
	"github.com/vovakirdan/studyhub-server/internal/store"
)

// Deps are the services the HTTP layer routes to.
type Deps struct {
	Hub      *core.Hub
	Members  *core.MemberCache
	Auth     *auth.Service
	Messages *messages.Service
	Friends  *friends.Service
	Calls    *calls.Service
	Store    store.Store
}

// NewServer builds an HTTP server with the REST API, metrics and the
// WebSocket endpoint.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiHandlers := NewAPIHandlers(deps.Auth, deps.Store, logger)
	userHandlers := NewUserHandlers(deps.Store, logger)
	friendsHandlers := NewFriendsHandlers(deps.Friends, deps.Store, logger)
	roomHandlers := NewRoomHandlers(deps.Store, deps.Members, deps.Messages, logger)
	messageHandlers := NewMessageHandlers(deps.Messages, logger)
	fileHandlers := NewFileHandlers(deps.Store, deps.Members, cfg.UploadDir, cfg.MaxUploadBytes, logger)
	callsHandlers := NewCallsHandlers(deps.Calls, logger)
	statusHandlers := NewStatusHandlers(deps.Store, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	protected := api.Group("")
	protected.Use(AuthMiddleware(deps.Auth, logger))
	{
		protected.GET("/auth/user", apiHandlers.CurrentUser)

		protected.GET("/users/search", userHandlers.SearchUsers)
		protected.PUT("/users/profile", userHandlers.UpdateProfile)

		protected.POST("/friends/request", friendsHandlers.SendRequest)
		protected.GET("/friends/requests", friendsHandlers.ListPendingRequests)
		protected.POST("/friends/requests/:id/accept", friendsHandlers.AcceptRequest)
		protected.POST("/friends/requests/:id/reject", friendsHandlers.RejectRequest)
		protected.GET("/friends", friendsHandlers.ListFriends)

		protected.POST("/rooms", roomHandlers.CreateRoom)
		protected.GET("/rooms", roomHandlers.ListRooms)
		protected.GET("/rooms/:id", roomHandlers.GetRoom)
		protected.POST("/rooms/:id/members", roomHandlers.AddMember)
		protected.GET("/rooms/:id/members", roomHandlers.ListMembers)
		protected.DELETE("/rooms/:id/members/:userId", roomHandlers.RemoveMember)
		protected.GET("/rooms/:id/messages", roomHandlers.RoomMessages)
		protected.POST("/rooms/:id/subjects", roomHandlers.CreateSubject)
		protected.GET("/rooms/:id/subjects", roomHandlers.ListSubjects)
		protected.GET("/rooms/:id/files", fileHandlers.ListRoomFiles)
		protected.POST("/subjects/:id/subcategories", roomHandlers.CreateSubcategory)
		protected.GET("/subjects/:id/subcategories", roomHandlers.ListSubcategories)

		protected.POST("/messages", messageHandlers.SendMessage)
		protected.GET("/messages/direct/:userId", messageHandlers.DirectMessages("userId"))
		protected.POST("/messages/:id/read", messageHandlers.MarkRead)
		protected.GET("/chats/:id/messages", messageHandlers.DirectMessages("id"))
		protected.POST("/chats/:id/messages", messageHandlers.SendChatMessage)
		protected.POST("/chats/:id/read", messageHandlers.MarkChatRead)

		protected.POST("/files/upload", fileHandlers.Upload)
		protected.GET("/files/search", fileHandlers.SearchFiles)
		protected.GET("/files/:id", fileHandlers.Download)
		protected.DELETE("/files/:id", fileHandlers.DeleteFile)

		protected.POST("/calls", callsHandlers.CreateCall)
		protected.GET("/calls", callsHandlers.ListCalls)
		protected.POST("/calls/:id/join", callsHandlers.JoinCall)
		protected.POST("/calls/:id/end", callsHandlers.EndCall)

		protected.POST("/status", statusHandlers.CreateStatus)
		protected.GET("/status/feed", statusHandlers.Feed)
	}

	// /ws stays off gin: the handshake hijacks the connection.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Hub, WSOptions{
		MaxMessageBytes: cfg.MaxMessageBytes,
		SendBuffer:      cfg.SendBufferSize,
		WriteTimeout:    cfg.WriteTimeout,
		PerSecond:       cfg.WSMessagesPerSecond,
		Burst:           cfg.WSBurst,
	}, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
