package api

import (
	"bytes"
	"context"
	"html/template"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/contractgen/internal/assets"
	"github.com/rxtech-lab/contractgen/internal/wallet"
	"go.uber.org/zap"
)

type ConnectWalletRequest struct {
	Wallet string `json:"wallet"`
}

type AnnounceWalletRequest struct {
	Wallet    string `json:"wallet"`
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
}

type WalletPageData struct {
	WalletName string
}

var walletPage = template.Must(template.New("wallet").Parse(string(assets.WalletHTML)))

// handleWalletPage serves the page that drives the browser wallet extension.
func (s *APIServer) handleWalletPage(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := walletPage.Execute(&buf, WalletPageData{WalletName: s.walletName}); err != nil {
		s.logger.Error("Error rendering wallet page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to render wallet page")
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

func (s *APIServer) handleGetWallet(c *fiber.Ctx) error {
	return c.JSON(s.bridge.Connection())
}

// handleWalletAddress returns the connected address for clipboard export.
func (s *APIServer) handleWalletAddress(c *fiber.Ctx) error {
	conn := s.bridge.Connection()
	if !conn.Connected {
		return respondError(c, wallet.ErrNotConnected)
	}
	return c.JSON(map[string]string{"address": conn.Address})
}

// handleConnectWallet blocks until the wallet page answers the connect request.
func (s *APIServer) handleConnectWallet(c *fiber.Ctx) error {
	var body ConnectWalletRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	if body.Wallet == "" {
		body.Wallet = s.walletName
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.connectTimeout)
	defer cancel()

	conn, err := s.bridge.Connect(ctx, body.Wallet)
	if err != nil {
		s.logger.Warn("Wallet connection failed", zap.String("wallet", body.Wallet), zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(conn)
}

// handleAnnounceWallet records a connection the page already holds.
func (s *APIServer) handleAnnounceWallet(c *fiber.Ctx) error {
	var body AnnounceWalletRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if body.Address == "" {
		return badRequest(c, "address is required")
	}
	if body.Wallet == "" {
		body.Wallet = s.walletName
	}
	return c.JSON(s.bridge.Announce(body.Wallet, body.Address, body.PublicKey))
}

func (s *APIServer) handleDisconnectWallet(c *fiber.Ctx) error {
	if err := s.bridge.Disconnect(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(s.bridge.Connection())
}

func (s *APIServer) handleListWalletRequests(c *fiber.Ctx) error {
	return c.JSON(s.bridge.Pending())
}

func (s *APIServer) handleResolveWalletRequest(c *fiber.Ctx) error {
	var body wallet.Resolution
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.bridge.Resolve(c.Params("id"), body); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
