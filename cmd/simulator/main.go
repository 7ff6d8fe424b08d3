// Command simulator fakes the two downstream backends for local development:
// the charge-point backend's transactions/ocppTags API and the billing
// backend's signed internal endpoints. Point a locally running server at it
// with STEVE_BASE_URL and ODOO_HOST and exercise the full flow without
// either real system.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/pkg/signature"
)

var (
	port    = flag.Int("port", 9100, "Listen port")
	secret  = flag.String("secret", "simulator-secret", "Shared HMAC secret for billing responses")
	seed    = flag.Int("seed-sessions", 3, "Number of stopped sessions to seed")
	verbose = flag.Bool("verbose", false, "Enable verbose logging")
)

type state struct {
	mu         sync.Mutex
	tags       map[int64]*domain.OcppTag
	sessions   []domain.StoppedSession
	nextTagPk  int64
	nextUserID int64
	invoiceSeq int
}

func main() {
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	st := &state{
		tags:       make(map[int64]*domain.OcppTag),
		nextTagPk:  1,
		nextUserID: 100,
	}
	st.seedSessions(*seed)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// Charge-point backend surface.
	app.Get("/api/v1/transactions", st.listTransactions)
	app.Get("/api/v1/ocppTags", st.listTags)
	app.Post("/api/v1/ocppTags", st.createTag)
	app.Put("/api/v1/ocppTags/:pk", st.updateTag)

	// Billing backend surface.
	app.Post("/internal/user/create", st.createBillingUser)
	app.Post("/internal/bill/create", st.createInvoice)
	app.Post("/internal/rotate_api_key", st.rotateKey)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("OK") })

	go func() {
		logger.Info("simulator listening", zap.Int("port", *port))
		if err := app.Listen(fmt.Sprintf(":%d", *port)); err != nil {
			logger.Fatal("simulator failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.Shutdown()
}

func (s *state) seedSessions(n int) {
	base := time.Now().UTC().Add(-time.Duration(n) * time.Hour).Truncate(time.Second)
	for i := 0; i < n; i++ {
		stop := base.Add(time.Duration(i) * time.Hour)
		s.sessions = append(s.sessions, domain.StoppedSession{
			ID:             int64(101 + i),
			OcppTagPk:      1,
			OcppIDTag:      "SIMCARD01",
			StartTimestamp: stop.Add(-45 * time.Minute).Format(time.RFC3339),
			StopTimestamp:  stop.Format(time.RFC3339),
			StartValue:     "0",
			StopValue:      strconv.Itoa(5000 + i*250),
			StopReason:     "Local",
			StopEventActor: "station",
		})
	}
	s.tags[1] = &domain.OcppTag{OcppTagPk: 1, IDTag: "SIMCARD01", MaxActiveTransactionCount: 1}
}

func (s *state) listTransactions(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Query("periodType") != "FROM_TO" {
		return c.JSON(s.sessions)
	}

	from, err := time.Parse("2006-01-02T15:04:05", c.Query("from"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad from"})
	}

	var out []domain.StoppedSession
	for _, session := range s.sessions {
		stop, err := time.Parse(time.RFC3339, session.StopTimestamp)
		if err != nil {
			continue
		}
		if !stop.Before(from) {
			out = append(out, session)
		}
	}
	if out == nil {
		out = []domain.StoppedSession{}
	}
	return c.JSON(out)
}

func (s *state) listTags(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idTag := c.Query("idTag")
	out := []domain.OcppTag{}
	for _, tag := range s.tags {
		if idTag == "" || tag.IDTag == idTag {
			out = append(out, *tag)
		}
	}
	return c.JSON(out)
}

func (s *state) createTag(c *fiber.Ctx) error {
	var req struct {
		IDTag                     string `json:"idTag"`
		MaxActiveTransactionCount int    `json:"maxActiveTransactionCount"`
		Note                      string `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil || req.IDTag == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTagPk++
	tag := &domain.OcppTag{
		OcppTagPk:                 s.nextTagPk,
		IDTag:                     req.IDTag,
		Blocked:                   req.MaxActiveTransactionCount == 0,
		MaxActiveTransactionCount: req.MaxActiveTransactionCount,
		Note:                      req.Note,
	}
	s.tags[tag.OcppTagPk] = tag
	return c.Status(fiber.StatusCreated).JSON(tag)
}

func (s *state) updateTag(c *fiber.Ctx) error {
	pk, err := strconv.ParseInt(c.Params("pk"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad pk"})
	}

	var req struct {
		IDTag                     string `json:"idTag"`
		MaxActiveTransactionCount int    `json:"maxActiveTransactionCount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tag, ok := s.tags[pk]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no such tag"})
	}
	tag.MaxActiveTransactionCount = req.MaxActiveTransactionCount
	tag.Blocked = req.MaxActiveTransactionCount == 0
	return c.JSON(tag)
}

func (s *state) signedAccount(userID int64, key, keySalt string) (*domain.BillingAccount, error) {
	salt, err := signature.NewSalt(signature.MinSaltBytes)
	if err != nil {
		return nil, err
	}
	ts := signature.Timestamp(time.Now())
	msg := key + keySalt + ts + strconv.FormatInt(userID, 10) + salt
	hash, err := signature.Sign(msg, *secret)
	if err != nil {
		return nil, err
	}
	return &domain.BillingAccount{
		UserID:    userID,
		PartnerID: userID + 1000,
		Key:       key,
		KeySalt:   keySalt,
		Salt:      salt,
		Timestamp: ts,
		Hash:      hash,
	}, nil
}

func (s *state) createBillingUser(c *fiber.Ctx) error {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad body"})
	}

	s.mu.Lock()
	s.nextUserID++
	userID := s.nextUserID
	s.mu.Unlock()

	key, _ := signature.NewSalt(24)
	keySalt, _ := signature.NewSalt(signature.MinSaltBytes)
	acct, err := s.signedAccount(userID, key, keySalt)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(acct)
}

func (s *state) createInvoice(c *fiber.Ctx) error {
	s.mu.Lock()
	s.invoiceSeq++
	ref := fmt.Sprintf("INV-SIM-%04d", s.invoiceSeq)
	s.mu.Unlock()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"invoice_ref": ref})
}

func (s *state) rotateKey(c *fiber.Ctx) error {
	var req struct {
		Timestamp string `json:"timestamp"`
		UserID    int64  `json:"user_id"`
		Key       string `json:"key"`
		KeySalt   string `json:"key_salt"`
		Salt      string `json:"salt"`
		Hash      string `json:"hash"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad body"})
	}

	msg := req.Key + req.KeySalt + req.Timestamp + strconv.FormatInt(req.UserID, 10) + req.Salt
	if !signature.Verify(msg, *secret, req.Hash) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "bad signature"})
	}

	key, _ := signature.NewSalt(24)
	keySalt, _ := signature.NewSalt(signature.MinSaltBytes)
	acct, err := s.signedAccount(req.UserID, key, keySalt)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(acct)
}
