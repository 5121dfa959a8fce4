package okx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIResponseErr(t *testing.T) {
	ok := apiResponse[tickerData]{Code: "0"}
	assert.NoError(t, ok.err("market/tickers"))

	failed := apiResponse[tickerData]{Code: "51001", Msg: "Instrument ID does not exist"}
	err := failed.err("market/ticker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "51001")
	assert.Contains(t, err.Error(), "Instrument ID does not exist")
}

func TestTickerDataToModel(t *testing.T) {
	raw := tickerData{
		InstID: "BTC-USDT",
		Last:   "50123.4",
		Vol24h: "1234.5",
		TS:     "1700000000000",
	}

	m := raw.toModel()
	assert.Equal(t, "BTC-USDT", m.InstID)
	assert.Equal(t, 50123.4, m.LastPrice)
	assert.Equal(t, 1234.5, m.Volume24h)
	assert.Equal(t, time.UnixMilli(1700000000000), m.Timestamp)
}

func TestBookDataToModel(t *testing.T) {
	raw := bookData{
		Bids: [][]string{
			{"50000", "1.5", "0", "3"},
			{"49999", "2.0", "0", "1"},
		},
		Asks: [][]string{
			{"50001", "0.7", "0", "2"},
		},
		TS: "1700000000000",
	}

	book := raw.toModel("BTC-USDT")
	assert.Equal(t, "BTC-USDT", book.InstID)
	require.Len(t, book.Bids, 2)
	assert.Equal(t, 50000.0, book.Bids[0].Price)
	assert.Equal(t, 1.5, book.Bids[0].Size)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, 0.7, book.Asks[0].Size)
}

func TestParseLevelsSkipsShortTuples(t *testing.T) {
	levels := parseLevels([][]string{{"50000"}, {"49999", "2.0"}})
	require.Len(t, levels, 1)
	assert.Equal(t, 49999.0, levels[0].Price)
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 1.5, parseFloat("1.5"))
	assert.Zero(t, parseFloat(""))
	assert.Zero(t, parseFloat("not-a-number"))
}

func TestParseMillis(t *testing.T) {
	assert.Equal(t, time.UnixMilli(1700000000000), parseMillis("1700000000000"))

	// Unparseable stamps fall back to the local clock.
	assert.WithinDuration(t, time.Now(), parseMillis(""), time.Second)
	assert.WithinDuration(t, time.Now(), parseMillis("0"), time.Second)
}
