package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"educhat/internal/activity"
	"educhat/internal/auth"
	"educhat/internal/authz"
	"educhat/internal/httpserver"
	"educhat/internal/logger"
	"educhat/internal/metrics"
	"educhat/internal/models"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()
	metrics.Init()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.Role{}, &models.Permission{}, &models.RolePermission{},
		&models.CustomRule{}, &models.User{}, &models.AuditLog{},
		&models.Session{}, &models.Conversation{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedDefaults(db, lg)

	var cache *authz.DecisionCache
	if addr := os.Getenv("REDIS_URL"); addr != "" {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			lg.Fatalw("invalid REDIS_URL", "error", err)
		}
		cache = authz.NewDecisionCache(redis.NewClient(opt), parseCacheTTL())
		lg.Infow("decision cache enabled")
	}

	mon := activity.NewMonitor(parseInactivityTimeout())
	router := httpserver.NewRouter(db, cache, mon, lg)
	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	lg.Infow("listening", "port", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}

func parseInactivityTimeout() time.Duration {
	if s := os.Getenv("INACTIVITY_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return activity.DefaultTimeout
}

func parseCacheTTL() time.Duration {
	if s := os.Getenv("AUTHZ_CACHE_TTL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return 0
}

// basePermissions is the catalog seeded on first boot.
var basePermissions = []models.Permission{
	{Name: "permissao:gerenciar", Resource: "permissao", Action: "gerenciar", Description: "Gerenciar papéis e permissões", Category: "administracao"},
	{Name: "usuario:gerenciar", Resource: "usuario", Action: "gerenciar", Description: "Gerenciar usuários", Category: "administracao"},
	{Name: "auditoria:ver", Resource: "auditoria", Action: "ver", Description: "Consultar trilha de auditoria", Category: "administracao"},
	{Name: "conversa:ver", Resource: "conversa", Action: "ver", Description: "Ver conversas do inbox", Category: "atendimento"},
	{Name: "conversa:ver_proprio", Resource: "conversa", Action: "ver_proprio", Description: "Ver apenas conversas próprias", Category: "atendimento"},
	{Name: "conversa:responder", Resource: "conversa", Action: "responder", Description: "Responder conversas", Category: "atendimento"},
	{Name: "analytics:read", Resource: "analytics", Action: "read", Description: "Ver painéis de BI", Category: "gestao"},
}

func seedDefaults(db *gorm.DB, lg *zap.SugaredLogger) {
	now := time.Now()
	for _, name := range []string{"Administrador", "Gerente", "Atendente"} {
		db.Exec("INSERT INTO roles(name, is_active, created_at, updated_at) VALUES (?, true, ?, ?) ON CONFLICT DO NOTHING", name, now, now)
	}
	for _, p := range basePermissions {
		db.Exec(`INSERT INTO permissions(name, resource, action, description, category, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, true, ?, ?) ON CONFLICT DO NOTHING`,
			p.Name, p.Resource, p.Action, p.Description, p.Category, now, now)
	}

	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}
	hash, err := auth.HashPassword(envOr("ADMIN_PASSWORD", "admin123"))
	if err != nil {
		lg.Errorw("admin seed skipped, invalid ADMIN_PASSWORD", "error", err)
		return
	}
	var adminRole models.Role
	u := models.User{
		Name: "Administrador", Email: "admin@educhat.local", PasswordHash: hash,
		Role: models.RoleAdmin, IsActive: true, Status: "ativo",
		Channels: models.StringList{}, Macrosetores: models.StringList{},
		CreatedAt: now, UpdatedAt: now,
	}
	if err := db.First(&adminRole, "name = ?", "Administrador").Error; err == nil {
		u.RoleID = &adminRole.ID
	}
	if err := db.Create(&u).Error; err != nil {
		lg.Errorw("admin seed failed", "error", err)
		return
	}
	lg.Infow("seeded default admin", "email", u.Email)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
