package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBankAccounts(t *testing.T) {
	accounts, err := ParseBankAccounts("BCA:1234567890:PT Resto; Mandiri:987:Resto Nusantara ;")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "BCA", accounts[0].Bank)
	assert.Equal(t, "987", accounts[1].Number)
	assert.Equal(t, "Resto Nusantara", accounts[1].Holder)

	_, err = ParseBankAccounts("BCA-123")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QRIS_EXPIRY", "")
	t.Setenv("CASH_VARIANCE_THRESHOLD", "")
	t.Setenv("QRIS_PROVIDER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Payment.QRISExpiry)
	assert.Equal(t, 24*time.Hour, cfg.Payment.TransferExpiry)
	assert.Equal(t, "5000", cfg.Payment.CashVariance.String())
	assert.NotEmpty(t, cfg.Payment.BankAccounts)
}

func TestLoadRequiresMidtransKey(t *testing.T) {
	t.Setenv("QRIS_PROVIDER", "midtrans")
	t.Setenv("MIDTRANS_SERVER_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	_, err := InitDB(DBConfig{Driver: "oracle"})
	assert.Error(t, err)
}
