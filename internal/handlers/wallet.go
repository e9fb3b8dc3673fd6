package handlers

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"galamsey-report-backend/internal/models"
	"galamsey-report-backend/internal/wallet"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RewardsReader is the read side of the chain. *wallet.Client satisfies it.
type RewardsReader interface {
	Enabled() bool
	ExpectedChainID() int64
	CurrentNetwork(ctx context.Context) (int64, error)
	RewardsFor(ctx context.Context, address string) (wallet.Rewards, error)
	RewardPerReport(ctx context.Context) (*big.Int, error)
}

type WalletHandler struct {
	connections *wallet.Connections
	chain       RewardsReader
	logger      zerolog.Logger
}

func NewWalletHandler(connections *wallet.Connections, chain RewardsReader, logger zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		connections: connections,
		chain:       chain,
		logger:      logger,
	}
}

// ConnectWallet godoc
// @Summary     Connect a wallet
// @Description Remembers the caller's wallet address. Later submissions record their hash on chain and credit rewards to it.
// @Tags        wallet
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.ConnectWalletRequest true "Wallet address"
// @Success     200 {object} models.WalletResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /wallet/connect [post]
func (h *WalletHandler) ConnectWallet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.ConnectWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	address, err := h.connections.Connect(userID, req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid wallet address", Message: err.Error()})
		return
	}

	resp := models.WalletResponse{
		Address:          address,
		RecordingEnabled: h.chain != nil && h.chain.Enabled(),
	}
	if resp.RecordingEnabled {
		resp.ExpectedChainID = h.chain.ExpectedChainID()
		if id, err := h.chain.CurrentNetwork(c.Request.Context()); err == nil {
			resp.ChainID = id
		} else {
			h.logger.Warn().Err(err).Msg("Failed to read current network")
		}
		if reward, err := h.chain.RewardPerReport(c.Request.Context()); err == nil {
			resp.RewardPerReport = wallet.FormatEther(reward)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// DisconnectWallet godoc
// @Summary     Disconnect the wallet
// @Tags        wallet
// @Security    Bearer
// @Success     204
// @Failure     401 {object} models.ErrorResponse
// @Router      /wallet/connect [delete]
func (h *WalletHandler) DisconnectWallet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	h.connections.Disconnect(userID)
	c.Status(http.StatusNoContent)
}

// GetRewards godoc
// @Summary     Get reward balance
// @Description Reads the reward balance and report count of the connected wallet from the contract.
// @Tags        wallet
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.RewardsResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /wallet/rewards [get]
func (h *WalletHandler) GetRewards(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if h.chain == nil || !h.chain.Enabled() {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "chain recording not configured"})
		return
	}

	address := h.connections.Address(userID)
	if address == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "wallet not connected", Message: wallet.ErrNotConnected.Error()})
		return
	}

	rewards, err := h.chain.RewardsFor(c.Request.Context(), address)
	if err != nil {
		h.logger.Warn().Err(err).Str("address", address).Msg("Failed to read rewards")
		status := http.StatusBadGateway
		if errors.Is(err, wallet.ErrInvalidAddress) {
			status = http.StatusBadRequest
		}
		c.JSON(status, models.ErrorResponse{Error: "failed to read rewards"})
		return
	}

	c.JSON(http.StatusOK, rewardsResponse(rewards))
}

func rewardsResponse(r wallet.Rewards) models.RewardsResponse {
	resp := models.RewardsResponse{
		Address:     r.Address,
		Amount:      "0",
		AmountEther: r.AmountEther(),
		ReportCount: "0",
	}
	if r.Amount != nil {
		resp.Amount = r.Amount.String()
	}
	if r.Count != nil {
		resp.ReportCount = r.Count.String()
	}
	return resp
}
