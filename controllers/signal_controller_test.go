package controllers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttss_backend/config"
	"ttss_backend/models"
)

// seedFlatMonth inserts a month of flat bars for one code. A flat series
// settles KDJ at J=50 and MACD DIF at 0.
func seedFlatMonth(t *testing.T, code string) {
	price := decimal.NewFromInt(10)
	for day := 1; day <= 30; day++ {
		require.NoError(t, config.DB.Create(&models.DailyBar{
			TsCode:    code,
			StockName: "测试股份",
			TradeDate: fmt.Sprintf("202607%02d", day),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			PreClose:  price,
			Volume:    1000,
			Amount:    decimal.NewFromInt(10000),
		}).Error)
	}
}

func TestManualCalculationUsesCallerThresholds(t *testing.T) {
	r := setupTestServer(t)
	seedFlatMonth(t, "600001.SH")

	w := doJSON(r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"phone": "13800000000", "password": "admin123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	// with default thresholds J=50 fails the J<=13 precondition
	w = doJSON(r, http.MethodPost, "/api/v1/signals/calculate", login.Token, map[string]string{
		"strategy_type": "B1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Run models.CalculationLog `json:"run"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Run.TotalStocks)
	assert.Equal(t, 0, resp.Run.PassedFilter)

	// loosen the caller's config so the flat series passes both filters
	w = doJSON(r, http.MethodPut, "/api/v1/config", login.Token, map[string]interface{}{
		"b1_j_threshold": 60, "b1_macd_dif_threshold": -1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/v1/signals/calculate", login.Token, map[string]string{
		"strategy_type": "B1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Run.PassedFilter)
	assert.Equal(t, 1, resp.Run.TaggedStocks)
}
