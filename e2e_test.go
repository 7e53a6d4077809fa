package warp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/go-warp/warp"
	jsoncodec "github.com/go-warp/warp/codec/json"
	"github.com/go-warp/warp/errors"
	"github.com/go-warp/warp/interceptor"
	httptransport "github.com/go-warp/warp/transport/http"
)

type order struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func ordersServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/orders/", func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.URL.Path, "/orders/")
		if raw == "404" {
			http.Error(w, "no such order", http.StatusNotFound)
			return
		}
		var id int64
		fmt.Sscanf(raw, "%d", &id)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(order{ID: id, Status: "shipped"})
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var in order
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.Status = "created"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(in)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func ordersClient(t *testing.T, host string, opts ...warp.Option) *warp.BoundClient {
	t.Helper()
	transport := httptransport.New()
	t.Cleanup(func() { transport.Close() })

	codec := jsoncodec.New()
	base := []warp.Option{
		warp.WithClient(transport),
		warp.WithEncoder(codec),
		warp.WithDecoder(codec),
	}
	w, err := warp.New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create instance: %v", err)
	}

	target, err := warp.NewTarget("Orders", host)
	if err != nil {
		t.Fatalf("Failed to create target: %v", err)
	}

	get := warp.NewMethodMetadata("Orders#GetOrder(int64)",
		warp.NewRequestTemplate("GET", "/orders/{id}"))
	get.Bindings = []warp.ArgumentBinding{{Index: 0, Names: []string{"id"}}}
	get.ReturnType = order{}

	create := warp.NewMethodMetadata("Orders#CreateOrder(Order)",
		warp.NewRequestTemplate("POST", "/orders"))
	create.BodyIndex = 0
	create.BodyType = "order"
	create.ReturnType = order{}

	client, err := w.Bind(target, []warp.MethodSpec{{Metadata: get}, {Metadata: create}})
	if err != nil {
		t.Fatalf("Failed to bind client: %v", err)
	}
	return client
}

func TestEndToEndGetOrder(t *testing.T) {
	server := ordersServer(t)
	client := ordersClient(t, server.URL)

	value, err := client.Call(context.Background(), "Orders#GetOrder(int64)", int64(42))
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	got, ok := value.(*order)
	if !ok {
		t.Fatalf("Expected *order, got %T", value)
	}
	if got.ID != 42 || got.Status != "shipped" {
		t.Errorf("Order mismatch: got %+v", got)
	}
}

func TestEndToEndCreateOrder(t *testing.T) {
	server := ordersServer(t)
	client := ordersClient(t, server.URL)

	value, err := client.Call(context.Background(), "Orders#CreateOrder(Order)", order{ID: 7})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	got := value.(*order)
	if got.ID != 7 || got.Status != "created" {
		t.Errorf("Order mismatch: got %+v", got)
	}
}

func TestEndToEndNotFound(t *testing.T) {
	server := ordersServer(t)
	client := ordersClient(t, server.URL)

	_, err := client.Call(context.Background(), "Orders#GetOrder(int64)", int64(404))
	var statusErr *errors.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusNotFound {
		t.Errorf("Status mismatch: got %d, want 404", statusErr.Status)
	}
	if !strings.Contains(string(statusErr.Body), "no such order") {
		t.Errorf("Body mismatch: got %s", statusErr.Body)
	}
}

func TestEndToEndInterceptorHeader(t *testing.T) {
	var sawAuth atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/orders/", func(w http.ResponseWriter, r *http.Request) {
		sawAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(order{ID: 1})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := ordersClient(t, server.URL,
		warp.WithInterceptor(interceptor.Bearer("secret-token")))

	if _, err := client.Call(context.Background(), "Orders#GetOrder(int64)", int64(1)); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got := sawAuth.Load(); got != "Bearer secret-token" {
		t.Errorf("Authorization mismatch: got %v", got)
	}
}

func TestEndToEndConcurrentInvocations(t *testing.T) {
	server := ordersServer(t)
	client := ordersClient(t, server.URL)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 1; i <= 16; i++ {
		id := int64(i)
		g.Go(func() error {
			value, err := client.Call(ctx, "Orders#GetOrder(int64)", id)
			if err != nil {
				return err
			}
			if got := value.(*order); got.ID != id {
				return fmt.Errorf("order %d: got id %d", id, got.ID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Concurrent invocations failed: %v", err)
	}
}
