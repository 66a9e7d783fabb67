package main

import (
	"log"
	"os"

	"omnichat/internal/api"
	"omnichat/internal/auth"
	"omnichat/internal/catalog"
	"omnichat/internal/config"
	"omnichat/internal/redis"
	"omnichat/internal/service/credentials"
	"omnichat/internal/service/provider"
	"omnichat/internal/service/title"
	"omnichat/internal/storage"
	"omnichat/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	cfgPath := os.Getenv("OMNICHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("OMNICHAT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	// Create necessary tables: conversations, messages, credentials, usage, rules
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	store := storage.NewStore(db, dbType)

	cat := catalog.New()
	credService, err := credentials.NewService(store, cfg)
	if err != nil {
		log.Fatalf("init credential service: %v", err)
	}
	factory := provider.NewFactory(cfg, cat)
	titles := title.NewSynthesizer(store, cat, credService, factory)
	engine := worker.NewEngine(cfg, store, cat, credService, factory, titles, rdb)
	authService := auth.NewService(rdb)

	handlers := api.NewHandler(store, authService, credService, cat, engine)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("run server: %v", err)
	}
}
