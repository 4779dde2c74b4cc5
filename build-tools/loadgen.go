//go:build ignore

// Run: go run ./build-tools/loadgen.go -nats nats://localhost:4222 -prefix clmm.events -rps 200 -duration 60s

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/big"
	mrand "math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dexanalytics/internal/config"
	"dexanalytics/internal/domain"
	"dexanalytics/internal/pricing"
	"dexanalytics/internal/pubsub/nats"

	"github.com/shopspring/decimal"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

const (
	weth    = "0x82af49447d8a07e3bd95bd0d56f35241523fbab1"
	usdc    = "0xff970a61a04b1ca14834a43f5de4533ebddb5cc8"
	refPool = "0x17c14d2c404d167802b16c450d3c99f88f2c4f4d"
	factory = "0x1f98431c8ad98523631ae4a59f267346ea31f984"
)

type generator struct {
	chainID  uint32
	block    uint64
	logIndex uint32
	ts       int64
	price    float64 // USDC per WETH
}

func main() {
	var (
		url      = flag.String("nats", "nats://localhost:4222", "nats url")
		prefix   = flag.String("prefix", "clmm.events", "event subject prefix")
		rps      = flag.Int("rps", 200, "swaps per second target")
		duration = flag.Duration("duration", 30*time.Second, "how long to run")
		chainID  = flag.Uint("chain", 42161, "chain id")
	)
	flag.Parse()

	lg := logger.New(lgcfg.LoggerCfg{Level: "info", Format: "console"})
	cl, err := nats.New(lg, &config.NATSConfig{URL: *url})
	if err != nil {
		fmt.Printf("nats init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = cl.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g := &generator{chainID: uint32(*chainID), block: 200_000_000, ts: time.Now().Unix(), price: 2000}
	publish := func(kind domain.EventKind, address string, payload any) {
		if err := cl.Publish(ctx, *prefix+"."+string(kind), g.envelope(kind, address, payload)); err != nil {
			fmt.Printf("publish error: %v\n", err)
		}
	}

	// bootstrap the reference pool so swaps are priced
	publish(domain.EventPoolCreated, factory, domain.PoolCreatedEvent{Pool: refPool, Token0: weth, Token1: usdc, Fee: 500, TickSpacing: 10})
	publish(domain.EventInitialize, refPool, domain.InitializeEvent{SqrtPriceX96: g.sqrtPrice(), Tick: g.tick()})
	publish(domain.EventMint, refPool, domain.LiquidityEvent{
		Owner:     "0x" + randHex(40),
		Sender:    "0x" + randHex(40),
		TickLower: -887270,
		TickUpper: 887270,
		Amount:    domain.NewBigInt(pow10(18)),
		Amount0:   domain.NewBigInt(new(big.Int).Mul(big.NewInt(500), pow10(18))),
		Amount1:   domain.NewBigInt(new(big.Int).Mul(big.NewInt(1_000_000), pow10(6))),
	})

	fmt.Printf("loadgen → nats=%s prefix=%s rps=%d duration=%s\n", *url, *prefix, *rps, duration.String())

	end := time.Now().Add(*duration)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	perTick := float64(*rps) / 10.0
	accum := 0.0
	sent := 0

loop:
	for {
		select {
		case <-ctx.Done():
			fmt.Println("signal received, stopping…")
			break loop
		case now := <-tick.C:
			if now.After(end) {
				break loop
			}

			accum += perTick
			batch := int(math.Floor(accum))
			if batch <= 0 {
				continue
			}
			accum -= float64(batch)

			for i := 0; i < batch; i++ {
				publish(domain.EventSwap, refPool, g.swap())
				sent++
			}
		}
	}

	fmt.Printf("done, swaps=%d\n", sent)
}

func (g *generator) envelope(kind domain.EventKind, address string, payload any) *domain.Envelope {
	raw, _ := json.Marshal(payload)

	// a new block every 4 logs, ~1s apart
	if g.logIndex >= 4 {
		g.block++
		g.ts++
		g.logIndex = 0
	}
	env := &domain.Envelope{
		Kind:        kind,
		ChainID:     g.chainID,
		BlockNumber: g.block,
		Timestamp:   g.ts,
		TxHash:      "0x" + randHex(64),
		LogIndex:    g.logIndex,
		Address:     address,
		Payload:     raw,
	}
	g.logIndex++
	return env
}

// swap moves the price by up to ±0.2% and trades 0.01..2 WETH
func (g *generator) swap() domain.SwapEvent {
	g.price *= 1 + (mrand.Float64()-0.5)*0.004

	size := 0.01 + mrand.Float64()*2
	amount0 := decimal.NewFromFloat(size).Shift(18).BigInt()
	amount1 := decimal.NewFromFloat(size * g.price).Shift(6).BigInt()

	// pool receives WETH and pays USDC, or the other way round
	if mrand.Intn(2) == 0 {
		amount1.Neg(amount1)
	} else {
		amount0.Neg(amount0)
	}

	return domain.SwapEvent{
		Sender:       "0x" + randHex(40),
		Recipient:    "0x" + randHex(40),
		Amount0:      domain.NewBigInt(amount0),
		Amount1:      domain.NewBigInt(amount1),
		SqrtPriceX96: g.sqrtPrice(),
		Liquidity:    domain.NewBigInt(pow10(18)),
		Tick:         g.tick(),
	}
}

func (g *generator) sqrtPrice() domain.BigInt {
	return domain.NewBigInt(pricing.EncodeSqrtPriceX96(decimal.NewFromFloat(g.price), 18, 6))
}

// tick of the raw price: log_1.0001(price * 10^(6-18))
func (g *generator) tick() int64 {
	return int64(math.Floor(math.Log(g.price*1e-12) / math.Log(1.0001)))
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func randHex(n int) string {
	b := make([]byte, n/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
