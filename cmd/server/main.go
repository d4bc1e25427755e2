package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-gate/internal/config"
	"github.com/iliyamo/ticket-gate/internal/credential"
	"github.com/iliyamo/ticket-gate/internal/database"
	"github.com/iliyamo/ticket-gate/internal/handler"
	"github.com/iliyamo/ticket-gate/internal/queue"
	"github.com/iliyamo/ticket-gate/internal/repository"
	"github.com/iliyamo/ticket-gate/internal/router"
	"github.com/iliyamo/ticket-gate/internal/service"
)

func main() {
	// Local development reads .env; in production the variables come
	// from the environment and the file is simply absent.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	codec, err := credential.NewCodec(cfg.TicketSecret)
	if err != nil {
		log.Fatalf("credential codec: %v", err)
	}

	eventRepo := repository.NewEventRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	seatRepo := repository.NewSeatRepo(db)
	ticketRepo := repository.NewTicketRepo(db)
	scanRepo := repository.NewScanRepo(db)
	staffRepo := repository.NewStaffRepo(db)

	publisher := queue.NewPublisher()
	issuer := service.NewIssuer(eventRepo, bookingRepo, seatRepo, ticketRepo, codec)
	validator := service.NewValidator(ticketRepo, scanRepo, codec, publisher)
	allocator := service.NewAllocator(bookingRepo, seatRepo)

	// The audit-trail consumer reconnects on its own; a broker outage
	// never blocks serving.
	go func() {
		if err := queue.StartScanConsumer(); err != nil {
			log.Printf("scan consumer stopped: %v", err)
		}
	}()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: rate limiting and report caching disabled")
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:    handler.NewAuthHandler(cfg, staffRepo),
		Events:  handler.NewEventHandler(eventRepo, seatRepo),
		Tickets: handler.NewTicketHandler(issuer, bookingRepo, ticketRepo),
		Seats:   handler.NewSeatHandler(allocator),
		Scans:   handler.NewScanHandler(validator, scanRepo, eventRepo),
	}, cfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
