package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/cart-sync/internal/adapter/remote"
	"github.com/rl1809/cart-sync/internal/adapter/storage"
	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/service"
)

const (
	productID     = "stress-tea"
	variantID     = "100g"
	unitPrice     = "12.50"
	totalRequests = 50
	debounce      = 200 * time.Millisecond
	remoteLatency = 30 * time.Millisecond
)

type staticToken string

func (t staticToken) AccessToken() string { return string(t) }

func main() {
	// Fake storefront counting full-replace pushes
	var (
		pushes   atomic.Int32
		mu       sync.Mutex
		lastPush []domain.CartLine
	)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/v1/cart/items":
			var body struct {
				Items []domain.CartLine `json:"items"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			time.Sleep(remoteLatency)
			pushes.Add(1)
			mu.Lock()
			lastPush = body.Items
			mu.Unlock()
			json.NewEncoder(w).Encode(domain.RemoteCart{})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer api.Close()

	client := remote.NewClient(api.URL, api.Client(), staticToken("stress"), nil)
	session := service.NewSession(storage.NewMemoryStore(), nil)
	session.SetTokens(context.Background(), service.Tokens{AccessToken: "stress"})

	cart := service.NewCartService(service.CartOptions{
		Remote:   client,
		Store:    storage.NewMemoryStore(),
		Auth:     session,
		Debounce: debounce,
	})

	// Spawn concurrent mutations
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cart.AddItem(context.Background(), domain.LineItem{
				ProductID: productID,
				VariantID: variantID,
				Quantity:  1,
				UnitPrice: unitPrice,
			})
		}()
	}

	wg.Wait()
	mutated := time.Since(start)

	time.Sleep(debounce + remoteLatency)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cart.Settle(ctx); err != nil {
		log.Fatalf("sync did not settle: %v", err)
	}
	elapsed := time.Since(start)

	st := cart.State()
	mu.Lock()
	pushed := lastPush
	mu.Unlock()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Mutations:        %d\n", totalRequests)
	fmt.Printf("Remote pushes:    %d\n", pushes.Load())
	fmt.Printf("Local quantity:   %d\n", st.Cart.TotalQuantity)
	fmt.Printf("Local total:      %s\n", st.Cart.TotalPrice)
	fmt.Printf("Mutation time:    %v\n", mutated)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if pushes.Load() == 1 {
		fmt.Println("PASS: burst coalesced into one push")
	} else {
		fmt.Printf("FAIL: expected 1 push, got %d\n", pushes.Load())
	}

	if len(pushed) == 1 && pushed[0].Quantity == totalRequests {
		fmt.Printf("PASS: remote received final quantity %d\n", totalRequests)
	} else {
		fmt.Printf("FAIL: remote received %+v\n", pushed)
	}

	if err := cart.Close(ctx); err != nil {
		log.Printf("close: %v", err)
	}
}
