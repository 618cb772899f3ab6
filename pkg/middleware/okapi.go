package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/notify/pkg/logging"
)

var log = logging.MustGetLogger("middleware")

const (
	// HeaderTenant はテナントIDを受け取るHTTPヘッダーキー。
	HeaderTenant = "X-Okapi-Tenant"
	// HeaderUserID は操作ユーザーIDを受け取るHTTPヘッダーキー。
	HeaderUserID = "X-Okapi-User-Id"
	// HeaderToken はゲートウェイが発行したJWTを受け取るHTTPヘッダーキー。
	HeaderToken = "X-Okapi-Token"
)

const (
	contextKeyTenant = "tenant"
	contextKeyUserID = "user_id"
)

// TokenClaims はゲートウェイが発行するJWTのクレーム。
type TokenClaims struct {
	jwt.RegisteredClaims
	// UserID は操作ユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Tenant はトークンが発行されたテナント。
	Tenant string `json:"tenant"`
}

// Okapi はOkapiヘッダーからテナントと操作ユーザーを取り出してコンテキストに設定するGinミドルウェアを返す。
//
// 操作ユーザーは X-Okapi-User-Id を優先し、なければ X-Okapi-Token のuser_idクレームを使用する。
// トークンの署名はゲートウェイで検証済みのため、ここでは検証しない。
// テナントの有無はここでは判定せず、各操作の最初に検査する。
func Okapi() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextKeyTenant, c.GetHeader(HeaderTenant))

		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			if token := c.GetHeader(HeaderToken); token != "" {
				userID = userIDFromToken(token)
			}
		}
		c.Set(contextKeyUserID, userID)
		c.Next()
	}
}

// userIDFromToken は署名を検証せずにトークンからuser_idクレームを取り出す。
func userIDFromToken(token string) string {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Debugf("%sの解析に失敗: %v", HeaderToken, err)
		return ""
	}
	return claims.UserID
}

// GetTenant はGinコンテキストからテナントIDを取得する。
func GetTenant(c *gin.Context) string {
	return c.GetString(contextKeyTenant)
}

// GetUserID はGinコンテキストから操作ユーザーIDを取得する。
// Okapiミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}
