package auctionhandler

import (
	"auctionhouse/internal/locks"
	"auctionhouse/internal/protocol"
	"auctionhouse/internal/services/auction"
	"auctionhouse/internal/store"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	svc := auction.NewAuctionService(store.NewMemoryStore(), locks.NewRegistry(), locks.NewRegistry(), nil)
	r := gin.New()
	New(svc).Register(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createBody(name string) string {
	return fmt.Sprintf(`{"name":%q,"startingPrice":"100","endTime":%d,"seller":"sam","minimumBidIncrement":"10"}`,
		name, time.Now().Add(time.Hour).Unix())
}

func TestHandler_CreateBidAndRead(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/auctions", createBody("Vintage Watch"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created CreatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = do(r, http.MethodPost, "/auctions", createBody("vintage watch"))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/auctions/"+created.ID+"/bid", `{"bidder":"ann","price":105}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "minimum allowed bid is 110")

	w = do(r, http.MethodPost, "/auctions/"+created.ID+"/bid", `{"bidder":"ann","price":110}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/auctions/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var dto protocol.AuctionDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.Equal(t, "110", dto.CurrentPrice.String())
	require.Len(t, dto.BiddingHistory, 1)

	w = do(r, http.MethodGet, "/auctions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []protocol.AuctionDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestHandler_Errors(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown auction", http.MethodGet, "/auctions/missing", "", http.StatusNotFound},
		{"bid on unknown auction", http.MethodPost, "/auctions/missing/bid", `{"bidder":"a","price":1}`, http.StatusNotFound},
		{"bid without price", http.MethodPost, "/auctions/missing/bid", `{"bidder":"a"}`, http.StatusBadRequest},
		{"bid non-positive price", http.MethodPost, "/auctions/missing/bid", `{"bidder":"a","price":0}`, http.StatusBadRequest},
		{"bid huge exponent", http.MethodPost, "/auctions/missing/bid", `{"bidder":"a","price":"1e10000000"}`, http.StatusBadRequest},
		{"create too many decimals", http.MethodPost, "/auctions", `{"name":"x","startingPrice":"0.000000001","endTime":99999999999,"seller":"s","minimumBidIncrement":1}`, http.StatusBadRequest},
		{"create malformed", http.MethodPost, "/auctions", `{"name":`, http.StatusBadRequest},
		{"create missing seller", http.MethodPost, "/auctions", `{"name":"x","startingPrice":1,"endTime":99999999999,"minimumBidIncrement":1}`, http.StatusBadRequest},
		{"create in the past", http.MethodPost, "/auctions", `{"name":"x","startingPrice":1,"endTime":1,"seller":"s","minimumBidIncrement":1}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := do(r, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}
