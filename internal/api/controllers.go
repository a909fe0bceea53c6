package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tradectl/internal/signals"
)

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "running",
		"version":       s.Meta.Version,
		"dry_run":       s.Meta.DryRun,
		"use_mock_feed": s.Meta.UseMockFeed,
		"symbols":       s.Meta.Symbols,
	})
}

func (s *Server) getMonitorMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics not enabled"})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func (s *Server) getPositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.Engine.Positions()})
}

func (s *Server) getPortfolioMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.PortfolioMetrics())
}

// signalParam parses the optional ?signal= query, defaulting to BUY.
func signalParam(c *gin.Context) (signals.Type, bool) {
	raw := c.DefaultQuery("signal", string(signals.Buy))
	sig, err := signals.ParseType(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_SIGNAL",
			"error": err.Error(),
		})
		return "", false
	}
	return sig, true
}

func (s *Server) getCooldowns(c *gin.Context) {
	sig, ok := signalParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"signal":    sig,
		"cooldowns": s.Engine.CooldownStatus(sig),
	})
}

func (s *Server) getCooldownReport(c *gin.Context) {
	sig, ok := signalParam(c)
	if !ok {
		return
	}
	c.String(http.StatusOK, s.Engine.CooldownReport(sig))
}

func (s *Server) getTransactions(c *gin.Context) {
	txs := s.Engine.Transactions()

	limit := len(txs)
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 && n < limit {
			limit = n
		}
	}
	// Newest entries are at the tail of the log.
	c.JSON(http.StatusOK, gin.H{"transactions": txs[len(txs)-limit:]})
}

func (s *Server) getDecisions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"decisions": s.Engine.Decisions()})
}
