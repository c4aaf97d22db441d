package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"power-grid/config"
	"power-grid/utils"
)

// Claims JWT 载荷
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message"`
}

// Auth 运维账号登录和 Token 校验
// 只有一个账号, 用户名和 bcrypt 哈希来自配置
type Auth struct {
	enabled      bool
	secret       []byte
	tokenTTL     time.Duration
	username     string
	passwordHash string
	now          func() time.Time
}

// NewAuth 根据配置创建 Auth
func NewAuth(cfg config.AuthConfig) *Auth {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Auth{
		enabled:      cfg.Enabled,
		secret:       []byte(cfg.JWTSecret),
		tokenTTL:     ttl,
		username:     cfg.AdminUser,
		passwordHash: cfg.AdminPasswordHash,
		now:          time.Now,
	}
}

// Enabled 是否要求请求携带 Token
func (a *Auth) Enabled() bool { return a.enabled }

// Login 处理运维登录
func (a *Auth) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误"})
		return
	}

	if len(a.secret) == 0 || a.passwordHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "未配置登录账号"})
		return
	}

	// 用户名和密码错误返回相同信息
	if req.Username != a.username || !utils.CheckPassword(a.passwordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
		return
	}

	now := a.now()
	expiresAt := now.Add(a.tokenTTL)
	claims := &Claims{
		Username: req.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "power-grid",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.secret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成 Token 失败"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     tokenString,
		Username:  req.Username,
		ExpiresAt: expiresAt.UTC(),
		Message:   "登录成功",
	})
}

// Middleware JWT 认证中间件, 未启用认证时直接放行
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.enabled {
			c.Next()
			return
		}

		tokenString, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "未提供 Token"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return a.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的 Token"})
			return
		}

		// 将用户信息存入上下文
		c.Set("username", claims.Username)
		c.Next()
	}
}
