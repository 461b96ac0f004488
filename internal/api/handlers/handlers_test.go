package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/domain"
	"marketplace/internal/infrastructure/memory"
	"marketplace/internal/infrastructure/validation"
	"marketplace/internal/services"
	"marketplace/pkg/logger"
)

type nopInvalidator struct{}

func (nopInvalidator) InvalidateTags(ctx context.Context, tags ...string) error { return nil }

type testAPI struct {
	e     *echo.Echo
	store *memory.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logger.NewNop()
	store := memory.NewStore()
	store.AddUser(domain.User{ID: 1, Name: "alice"})
	store.AddUser(domain.User{ID: 2, Name: "bob"})

	validator := validation.NewEntityValidator()
	lifecycle := services.NewOfferLifecycle(store, store, store, nopInvalidator{}, validator, nil, log)
	notifications := services.NewNotificationService(store, nil, validator, log)
	bids := services.NewBidService(store, store, lifecycle, validator, log,
		services.WithOfferLocker(memory.NewOfferLocker()),
		services.WithOutbidNotifications(notifications))
	view := services.NewBiddingView(store, store, store, nil, log)

	e := echo.New()
	RegisterRoutes(e.Group("/api/v1"),
		NewOfferHandler(lifecycle, view, log),
		NewBidHandler(bids, lifecycle, log),
		NewNotificationHandler(notifications, log))
	return &testAPI{e: e, store: store}
}

func (a *testAPI) do(t *testing.T, method, path string, userID int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != 0 {
		req.Header.Set(UserIDHeader, strconv.FormatInt(userID, 10))
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func (a *testAPI) createOffer(t *testing.T, owner int64, body string) int64 {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/offers", owner, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var offer domain.Offer
	decode(t, rec, &offer)
	return offer.ID
}

func TestOfferHandler_CreateAndView(t *testing.T) {
	api := newTestAPI(t)
	id := api.createOffer(t, 1, `{"title":"Road bike","mode":{"kind":"with_minimum","price":100}}`)

	rec := api.do(t, http.MethodGet, "/api/v1/offers/"+strconv.FormatInt(id, 10), 2, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary services.OfferSummary
	decode(t, rec, &summary)
	assert.Equal(t, "$100", summary.DisplayPrice)
	assert.Equal(t, "Be the first!", summary.PromoText)
	assert.Equal(t, "Start bidding at 100$", summary.BiddingPrompt)
	assert.Equal(t, "Submit", summary.CallToAction)
	assert.Equal(t, domain.OfferPublished, summary.Offer.Status)
}

func TestOfferHandler_CreateRejects(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/offers", 0, `{"title":"Road bike","mode":{"kind":"no_minimum"}}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/offers", 1, `{"title":"","mode":{"kind":"no_minimum"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, domain.CodeConstraintViolation, resp.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/offers", 1, `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBidHandler_SubmitAndRaise(t *testing.T) {
	api := newTestAPI(t)
	id := api.createOffer(t, 1, `{"title":"Road bike","mode":{"kind":"with_minimum","price":100}}`)
	bidsPath := "/api/v1/offers/" + strconv.FormatInt(id, 10) + "/bids"

	tests := []struct {
		name   string
		user   int64
		body   string
		status int
		code   domain.ValidationCode
	}{
		{"at floor", 2, `{"amount":"100"}`, http.StatusBadRequest, domain.CodeBidTooLow},
		{"non numeric", 2, `{"amount":"abc"}`, http.StatusBadRequest, domain.CodeInvalidAmount},
		{"new bid", 2, `{"amount":"150"}`, http.StatusCreated, ""},
		{"numeric body raises", 2, `{"amount":160}`, http.StatusOK, ""},
		{"anonymous", 0, `{"amount":"500"}`, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, bidsPath, tt.user, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				var resp ErrorResponse
				decode(t, rec, &resp)
				assert.Equal(t, tt.code, resp.Code)
			}
		})
	}

	rec := api.do(t, http.MethodPost, bidsPath, 2, `{"amount":"150"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Minimum bid needs to be 161$", resp.Error)

	rec = api.do(t, http.MethodPost, "/api/v1/offers/999/bids", 2, `{"amount":"150"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBidHandler_DeleteBidOwnerOnly(t *testing.T) {
	api := newTestAPI(t)
	id := api.createOffer(t, 1, `{"title":"Lamp","mode":{"kind":"no_minimum"}}`)

	rec := api.do(t, http.MethodPost, "/api/v1/offers/"+strconv.FormatInt(id, 10)+"/bids", 2, `{"amount":"5"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var submitted SubmitBidResponse
	decode(t, rec, &submitted)
	bidPath := "/api/v1/bids/" + strconv.FormatInt(submitted.Bid.ID, 10)

	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodDelete, bidPath, 1, "").Code)
	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, bidPath, 2, "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, bidPath, 2, "").Code)
}

func TestOfferHandler_UpdateAndDelete(t *testing.T) {
	api := newTestAPI(t)
	id := api.createOffer(t, 1, `{"title":"Road bike","mode":{"kind":"no_minimum"}}`)
	offerPath := "/api/v1/offers/" + strconv.FormatInt(id, 10)

	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, offerPath+"/bids", 2, `{"amount":"10"}`).Code)

	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodPatch, offerPath, 2, `{"title":"Mine now"}`).Code)

	rec := api.do(t, http.MethodPatch, offerPath, 1, `{"title":"Racing bike","status":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated domain.Offer
	decode(t, rec, &updated)
	assert.Equal(t, "Racing bike", updated.Title)
	assert.Equal(t, domain.OfferUnpublished, updated.Status)

	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodDelete, offerPath, 2, "").Code)

	rec = api.do(t, http.MethodDelete, offerPath, 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted DeleteOfferResponse
	decode(t, rec, &deleted)
	assert.Equal(t, 1, deleted.Cascade.BidsDeleted)
	assert.True(t, deleted.Cascade.OfferDeleted)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, offerPath, 1, "").Code)
}

func TestOfferHandler_RejectsUnknownStatus(t *testing.T) {
	api := newTestAPI(t)
	id := api.createOffer(t, 1, `{"title":"Road bike","mode":{"kind":"no_minimum"}}`)
	offerPath := "/api/v1/offers/" + strconv.FormatInt(id, 10)

	rec := api.do(t, http.MethodPatch, offerPath, 1, `{"status":5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, domain.CodeConstraintViolation, resp.Code)
	assert.Equal(t, "status", resp.Field)

	rec = api.do(t, http.MethodPost, "/api/v1/offers", 1, `{"title":"Skis","status":2,"mode":{"kind":"no_minimum"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stored, err := api.store.GetOffer(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferPublished, stored.Status)
}

func TestOfferHandler_MyOffersCount(t *testing.T) {
	api := newTestAPI(t)
	api.createOffer(t, 1, `{"title":"One","mode":{"kind":"no_minimum"}}`)
	api.createOffer(t, 1, `{"title":"Two","mode":{"kind":"no_minimum"}}`)

	rec := api.do(t, http.MethodGet, "/api/v1/users/1/offers/count", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp OfferCountResponse
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/api/v1/users/x/offers/count", 0, "").Code)
}

func TestNotificationHandler_OutbidFlow(t *testing.T) {
	api := newTestAPI(t)
	id := api.createOffer(t, 1, `{"title":"Lamp","mode":{"kind":"no_minimum"}}`)
	bidsPath := "/api/v1/offers/" + strconv.FormatInt(id, 10) + "/bids"

	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, bidsPath, 2, `{"amount":"5"}`).Code)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, bidsPath, 3, `{"amount":"9"}`).Code)

	rec := api.do(t, http.MethodGet, "/api/v1/notifications", 2, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Notification
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, "highest bid is now 9$")

	notificationPath := "/api/v1/notifications/" + strconv.FormatInt(list[0].ID, 10)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, notificationPath, 3, "").Code)
	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, notificationPath, 2, "").Code)

	rec = api.do(t, http.MethodGet, "/api/v1/notifications", 2, "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}
