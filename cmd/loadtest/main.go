package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

type client struct {
	http *http.Client
	base string
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	sellerID := flag.Int64("seller", 900001, "seller user id used to create the product")
	stock := flag.Int64("stock", 5, "initial stock of the contested product")

	// 超卖测试参数：200 个用户并发结算同一件少量库存的商品
	nUsers := flag.Int("users", 200, "distinct users")
	concurrency := flag.Int("c", 50, "max concurrency")
	burst := flag.Int("burst", 30, "same-user concurrent checkouts in the second phase")
	flag.Parse()

	c := &client{http: &http.Client{Timeout: 10 * time.Second}, base: *baseURL}

	productID, err := c.createProduct(*sellerID, *stock)
	if err != nil {
		fail("create product: %v", err)
	}
	fmt.Printf("product %d created with stock %d\n", productID, *stock)

	// 1) 不超卖测试：每个用户购物车 1 件，并发结算
	for i := 0; i < *nUsers; i++ {
		if err := c.addToCart(userID(i), productID, 1); err != nil {
			fail("fill cart of user %d: %v", userID(i), err)
		}
	}
	fmt.Printf("start oversell test: users=%d concurrency=%d\n", *nUsers, *concurrency)
	results := runConcurrent(*nUsers, *concurrency, func(i int) Result {
		return c.checkout(userID(i))
	})
	summary := printSummary("oversell", results)

	remaining, err := c.productStock(productID)
	if err != nil {
		fail("stock check: %v", err)
	}
	fmt.Printf("final stock: %d (expected %d)\n", remaining, *stock-int64(summary[http.StatusCreated]))
	if remaining < 0 || remaining != *stock-int64(summary[http.StatusCreated]) {
		fail("stock invariant violated")
	}

	// 2) 同一用户并发结算：互斥锁与限流应返回 409 / 429，且最多成功一次
	burstUser := int64(800001)
	if err := c.addToCart(burstUser, productID, 1); err != nil {
		fmt.Println("burst phase skipped:", err)
		return
	}
	fmt.Printf("\nstart same-user test: user=%d requests=%d\n", burstUser, *burst)
	results2 := runConcurrent(*burst, *burst, func(int) Result {
		return c.checkout(burstUser)
	})
	if s := printSummary("same_user", results2); s[http.StatusCreated] > 1 {
		fail("same cart checked out %d times", s[http.StatusCreated])
	}
}

func userID(i int) int64 { return int64(i + 1) }

func runConcurrent(n, concurrency int, fn func(i int) Result) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func (c *client) createProduct(sellerID, stock int64) (uint, error) {
	var out struct {
		Data struct {
			Product struct {
				ID uint `json:"id"`
			} `json:"product"`
		} `json:"data"`
	}
	body := map[string]any{"title": "loadtest-" + strconv.FormatInt(time.Now().Unix(), 10), "price": 1000, "stock": stock}
	if err := c.doJSON(http.MethodPost, "/products", sellerID, "seller", body, &out); err != nil {
		return 0, err
	}
	return out.Data.Product.ID, nil
}

func (c *client) addToCart(userID int64, productID uint, qty int64) error {
	return c.doJSON(http.MethodPost, "/cart/items", userID, "user", map[string]any{"productId": productID, "quantity": qty}, nil)
}

func (c *client) productStock(productID uint) (int64, error) {
	var out struct {
		Data struct {
			Products []struct {
				ID    uint  `json:"id"`
				Stock int64 `json:"stock"`
			} `json:"products"`
		} `json:"data"`
	}
	if err := c.doJSON(http.MethodGet, "/products", 0, "", nil, &out); err != nil {
		return 0, err
	}
	for _, p := range out.Data.Products {
		if p.ID == productID {
			return p.Stock, nil
		}
	}
	return 0, fmt.Errorf("product %d not listed", productID)
}

func (c *client) checkout(userID int64) Result {
	req, _ := http.NewRequest(http.MethodPost, c.base+"/orders", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(body)}
}

// doJSON 发送请求并在 2xx 时解析响应体。
func (c *client) doJSON(method, path string, userID int64, role string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, c.base+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID > 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
		req.Header.Set("X-User-Role", role)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) map[int]int {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	codes := make([]int, 0, len(count))
	for code := range count {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range codes {
		fmt.Printf("  %d -> %d\n", code, count[code])
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
	return count
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
