package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	codeOK         = "ok"
	defaultCEP     = "01310-100"
	defaultAddress = "Av. Paulista, 1000 - São Paulo"
)

type loadMode string

const (
	modeBrowse         loadMode = "browse"
	modeCheckout       loadMode = "checkout"
	modeCheckoutCancel loadMode = "checkout-cancel"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	cancelRate  int
	username    string
	password    string
	productID   string
	quantity    int
	outputPath  string
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string

	flag.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "storefront REST API base URL")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modeBrowse), "load mode: browse | checkout | checkout-cancel")
	flag.IntVar(&cfg.cancelRate, "cancel-rate", 0, "cancel probability in percent for checkout mode (0..100)")
	flag.StringVar(&cfg.username, "username", "", "account used for checkout; an admin account is required to cancel")
	flag.StringVar(&cfg.password, "password", "", "password for -username")
	flag.StringVar(&cfg.productID, "product-id", "", "product to order (default: first active product)")
	flag.IntVar(&cfg.quantity, "quantity", 1, "units per order line")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")

	if cfg.baseURL == "" {
		return cfg, errors.New("base-url is required")
	}
	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.quantity <= 0 {
		return cfg, errors.New("quantity must be > 0")
	}
	if cfg.cancelRate < 0 || cfg.cancelRate > 100 {
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	}
	if cfg.cancelsOrders() && (cfg.username == "" || cfg.password == "") {
		return cfg, errors.New("username and password of an admin account are required to cancel orders")
	}

	return cfg, nil
}

func (c config) cancelsOrders() bool {
	return c.mode == modeCheckoutCancel || (c.mode == modeCheckout && c.cancelRate > 0)
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeBrowse:
		return modeBrowse, nil
	case modeCheckout:
		return modeCheckout, nil
	case modeCheckoutCancel:
		return modeCheckoutCancel, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())

	client := newAPIClient(cfg.baseURL, &http.Client{Timeout: cfg.timeout})
	if err := prepare(client, &cfg, runID); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "prepare load test: %v\n", err)
		os.Exit(1)
	}

	result := runLoad(client, cfg)

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// prepare открывает сессию и выбирает товар. Без учётных данных регистрирует
// одноразового покупателя.
func prepare(client *apiClient, cfg *config, runID string) error {
	if cfg.mode == modeBrowse {
		return nil
	}

	if cfg.username == "" {
		cfg.username = "load-" + runID
		cfg.password = "load-" + runID
		if err := client.register(cfg.username, cfg.password); err != nil {
			return fmt.Errorf("register load account: %w", err)
		}
	}
	if err := client.login(cfg.username, cfg.password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if cfg.productID == "" {
		id, err := client.firstProduct()
		if err != nil {
			return fmt.Errorf("pick product: %w", err)
		}
		cfg.productID = id
	}
	return nil
}

func runLoad(client *apiClient, cfg config) report {
	startedAt := time.Now()
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(client, cfg, id, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}
	return result
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func runScenario(client *apiClient, cfg config, index int, col *collector) (err error) {
	scenarioStart := time.Now()
	defer func() {
		col.record("scenario", time.Since(scenarioStart), resultCode(err))
	}()

	if cfg.mode == modeBrowse {
		return client.timed(col, "ListProducts", func() error {
			_, err := client.listProducts()
			return err
		})
	}

	var orderID string
	err = client.timed(col, "CreateOrder", func() error {
		var createErr error
		orderID, createErr = client.createOrder(cfg.productID, cfg.quantity)
		return createErr
	})
	if err != nil {
		return err
	}
	if orderID == "" {
		return errors.New("create response returned empty order id")
	}

	if cfg.mode == modeCheckoutCancel || shouldCancelScenario(index, cfg.cancelRate) {
		return client.timed(col, "CancelOrder", func() error {
			return client.transition(orderID, "cancelled")
		})
	}
	return nil
}

func shouldCancelScenario(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}
