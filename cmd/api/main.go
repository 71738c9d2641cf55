package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/ymatsuda/bookmates-backend/internal/config"
	"github.com/ymatsuda/bookmates-backend/internal/db"
	"github.com/ymatsuda/bookmates-backend/internal/model"
	"github.com/ymatsuda/bookmates-backend/internal/server"
)

var (
	sha       = "dev"
	buildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	srv := server.New(nil, sha, buildTime)
	defer srv.Shutdown()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port

	errCh := make(chan error, 1)

	go func() {
		log.Printf("starting server on %s", addr)
		errCh <- srv.Start(addr)
	}()

	go func() {
		cfg, err := config.Load()
		if err != nil {
			log.Printf("config load error: %v", err)
			return
		}
		conn, err := db.Connect(cfg)
		if err != nil {
			log.Printf("db connect error: %v", err)
			return
		}
		srv.SetDB(conn)
		if err := conn.AutoMigrate(&model.Message{}, &model.BlockRelation{}, &model.Listing{}); err != nil {
			log.Printf("auto migrate error: %v", err)
		}
		log.Printf("database ready")
	}()

	if err := <-errCh; err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
