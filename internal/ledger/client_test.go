package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"banter/internal/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&config.LedgerConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
	})
}

func TestClient_GetBalance(t *testing.T) {
	ctx := context.Background()

	Convey("GetBalance", t, func() {
		Convey("解析余额分项与总额", func(c C) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.So(r.Method, ShouldEqual, http.MethodGet)
				c.So(r.URL.Path, ShouldEqual, "/balance/u1")
				json.NewEncoder(w).Encode(map[string]int{
					"complimentary": 3,
					"purchased":     7,
					"credits":       10,
				})
			}))
			defer srv.Close()

			balance, err := newTestClient(srv.URL).GetBalance(ctx, "u1")
			So(err, ShouldBeNil)
			So(balance.Complimentary, ShouldEqual, 3)
			So(balance.Purchased, ShouldEqual, 7)
			So(balance.Total(), ShouldEqual, 10)
		})

		Convey("5xx 映射为 ErrUnavailable", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).GetBalance(ctx, "u1")
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})

		Convey("连接失败映射为 ErrUnavailable", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			srv.Close()

			_, err := newTestClient(srv.URL).GetBalance(ctx, "u1")
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestClient_HasEnough(t *testing.T) {
	ctx := context.Background()

	Convey("HasEnough 等价于 balance >= cost", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]int{"credits": 5})
		}))
		defer srv.Close()

		client := newTestClient(srv.URL)

		enough, err := client.HasEnough(ctx, "u1", 5)
		So(err, ShouldBeNil)
		So(enough, ShouldBeTrue)

		enough, err = client.HasEnough(ctx, "u1", 6)
		So(err, ShouldBeNil)
		So(enough, ShouldBeFalse)
	})

	Convey("查询失败原样上抛，不判定为不足", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := newTestClient(srv.URL).HasEnough(ctx, "u1", 1)
		So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
	})
}

func TestClient_Debit(t *testing.T) {
	ctx := context.Background()

	Convey("Debit", t, func() {
		Convey("成功返回扣减后余额", func(c C) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.So(r.Method, ShouldEqual, http.MethodPost)
				c.So(r.URL.Path, ShouldEqual, "/debit")

				var body map[string]any
				c.So(json.NewDecoder(r.Body).Decode(&body), ShouldBeNil)
				c.So(body["userId"], ShouldEqual, "u1")
				c.So(body["amount"], ShouldEqual, float64(1))

				json.NewEncoder(w).Encode(map[string]int{"credits": 4, "purchased": 4})
			}))
			defer srv.Close()

			balance, err := newTestClient(srv.URL).Debit(ctx, "u1", 1)
			So(err, ShouldBeNil)
			So(balance.Total(), ShouldEqual, 4)
		})

		Convey("402 映射为 ErrInsufficientFunds 并带回余额", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusPaymentRequired)
				json.NewEncoder(w).Encode(map[string]int{"credits": 0})
			}))
			defer srv.Close()

			balance, err := newTestClient(srv.URL).Debit(ctx, "u1", 5)
			So(errors.Is(err, ErrInsufficientFunds), ShouldBeTrue)
			So(balance.Total(), ShouldEqual, 0)
		})

		Convey("传输失败映射为 ErrUnavailable", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			srv.Close()

			_, err := newTestClient(srv.URL).Debit(ctx, "u1", 1)
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestClient_Do(t *testing.T) {
	ctx := context.Background()

	Convey("Do 透传账本响应", t, func() {
		Convey("成功时原样回传响应体", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"success": true, "credits": 12, "extra": "x"})
			}))
			defer srv.Close()

			result := newTestClient(srv.URL).Do(ctx, "debit", "u1", 1)
			So(result.Success, ShouldBeTrue)
			So(result.Credits, ShouldEqual, 12)
			So(result.Body["extra"], ShouldEqual, "x")
		})

		Convey("传输失败降级为 success=false credits=0", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			srv.Close()

			result := newTestClient(srv.URL).Do(ctx, "balance", "u1", 0)
			So(result.Success, ShouldBeFalse)
			So(result.Credits, ShouldEqual, 0)
			So(result.Body["success"], ShouldEqual, false)
		})
	})
}
