package notify

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/notify/internal/config"
	"github.com/nao1215/notify/pkg/middleware"
)

// selfID は操作ユーザー宛ての通知一覧を表すパスセグメント。
const selfID = "_self"

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// service は通知レコードの操作を提供する。
	service *Service
	// registry はテナントごとのStoreを管理する。
	registry *Registry
}

// NewServer は新しい通知サーバーを生成する。
// データディレクトリを準備し、設定に応じてEvent Storeへのイベント送信を有効にする。
func NewServer(cfg *config.Config) (*Server, error) {
	registry, err := NewRegistry(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("レジストリの初期化に失敗: %w", err)
	}
	service := NewService(registry, NewPublisher(cfg.EventStoreURL), cfg.DefaultLimit, cfg.MaxLimit)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.CORSOrigins))

	return newServer(router, cfg.Port, service, registry), nil
}

func newServer(router *gin.Engine, port string, service *Service, registry *Registry) *Server {
	s := &Server{
		router:   router,
		port:     port,
		service:  service,
		registry: registry,
	}
	s.setupRoutes()
	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Close はすべてのテナントのデータベースを閉じる。
func (s *Server) Close() error {
	return s.registry.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ヘルスチェック
	s.router.GET("/admin/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notify"})
	})

	api := s.router.Group("")
	api.Use(middleware.Okapi())
	{
		// テナントの名前空間の作成と削除
		api.POST("/_/tenant", s.handleProvisionTenant())
		api.DELETE("/_/tenant", s.handleDeprovisionTenant())

		notify := api.Group("/notify")
		{
			notify.GET("", s.handleList())
			notify.POST("", s.handleCreate())
			// _self は操作ユーザー宛ての一覧
			notify.GET("/:id", s.handleGet())
			notify.PUT("/:id", s.handleUpdate())
			notify.DELETE("/:id", s.handleDelete())
		}
	}
}

// request はGinコンテキストから操作の文脈を取り出す。
func request(c *gin.Context) Request {
	return Request{
		Tenant: middleware.GetTenant(c),
		UserID: middleware.GetUserID(c),
	}
}

func listParams(c *gin.Context) ListParams {
	return ListParams{
		Query:  c.Query("query"),
		Offset: c.Query("offset"),
		Limit:  c.Query("limit"),
	}
}

// handleProvisionTenant はテナントの名前空間を作成するハンドラ。
func (s *Server) handleProvisionTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.service.ProvisionTenant(c.Request.Context(), request(c)); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusCreated)
	}
}

// handleDeprovisionTenant はテナントの名前空間を削除するハンドラ。
func (s *Server) handleDeprovisionTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.service.DeprovisionTenant(c.Request.Context(), request(c)); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// handleList は検索条件に一致する通知一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		collection, err := s.service.List(c.Request.Context(), request(c), listParams(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, collection)
	}
}

// handleGet は指定IDの通知を返すハンドラ。IDが_selfの場合は操作ユーザー宛ての一覧を返す。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == selfID {
			collection, err := s.service.ListSelf(c.Request.Context(), request(c), listParams(c))
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, collection)
			return
		}

		n, err := s.service.Get(c.Request.Context(), request(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, n)
	}
}

// handleCreate は通知を作成するハンドラ。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディの読み込みに失敗しました"})
			return
		}

		n, err := s.service.Create(c.Request.Context(), request(c), c.GetHeader("Content-Type"), body)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Location", "/notify/"+n.ID)
		c.JSON(http.StatusCreated, n)
	}
}

// handleUpdate は指定IDの通知を置き換えるハンドラ。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディの読み込みに失敗しました"})
			return
		}

		if err := s.service.Update(c.Request.Context(), request(c), c.Param("id"), c.GetHeader("Content-Type"), body); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// handleDelete は指定IDの通知を削除するハンドラ。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.service.Delete(c.Request.Context(), request(c), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// errorParameter は422レスポンスで違反のあったフィールドと値を表す。
type errorParameter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// errorEntry は422レスポンスの1件の違反。
type errorEntry struct {
	Message    string           `json:"message"`
	Type       string           `json:"type"`
	Code       string           `json:"code"`
	Parameters []errorParameter `json:"parameters"`
}

// errorsResponse は422レスポンスのボディ。
type errorsResponse struct {
	Errors       []errorEntry `json:"errors"`
	TotalRecords int          `json:"totalRecords"`
}

// writeError はエラーをHTTPレスポンスに変換する。
// 意味検証の違反は422ですべての違反を列挙し、それ以外は {"error": message} を返す。
func writeError(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		log.Errorf("%s %s の処理に失敗: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	status := e.Kind.Status()
	if status != http.StatusUnprocessableEntity {
		if e.Kind == KindStorage {
			log.Warningf("%s %s でストアのエラー: %v", c.Request.Method, c.Request.URL.Path, e.Err)
		}
		c.JSON(status, gin.H{"error": e.Message})
		return
	}

	entries := make([]errorEntry, 0, len(e.Violations))
	for _, v := range e.Violations {
		entries = append(entries, errorEntry{
			Message:    v.Message,
			Type:       "1",
			Code:       "-1",
			Parameters: []errorParameter{{Key: v.Field, Value: v.Value}},
		})
	}
	c.JSON(status, errorsResponse{Errors: entries, TotalRecords: len(entries)})
}
