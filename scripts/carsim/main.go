// Command carsim drives a simulated vehicle fleet through the traffic
// fabric. Each car starts at an origin intersection and repeatedly asks
// that node's agent for the next hop toward its destination, until it
// arrives or exhausts the hop limit. Per-car paths are reported at the
// end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// FleetConfig is the YAML input: agent addresses plus the routes to drive.
type FleetConfig struct {
	// Agents maps node_id to the TCP address of its vehicle responder.
	Agents map[string]string `yaml:"agents"`
	// Routes to simulate; each route is driven by `cars` vehicles.
	Routes []Route `yaml:"routes"`
}

// Route is one origin/destination pair.
type Route struct {
	Origin      string `yaml:"origin"`
	Destination string `yaml:"destination"`
}

// Trip is the outcome of one car's journey.
type Trip struct {
	CarID   string
	Path    []string
	Arrived bool
	Err     error
	Took    time.Duration
}

func main() {
	configPath := flag.String("config", "fleet.yaml", "fleet configuration file")
	carsPerRoute := flag.Int("cars", 3, "cars per route")
	maxHops := flag.Int("max-hops", 32, "give up after this many hops")
	parallel := flag.Int("parallel", 16, "cars driving concurrently")
	timeout := flag.Duration("timeout", 5*time.Second, "per-hop query timeout")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "carsim: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Fleet: %d routes x %d cars, %d agents\n", len(cfg.Routes), *carsPerRoute, len(cfg.Agents))

	trips := drive(cfg, *carsPerRoute, *maxHops, *parallel, *timeout)
	report(trips)

	for _, trip := range trips {
		if !trip.Arrived {
			os.Exit(1)
		}
	}
}

func loadConfig(path string) (*FleetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg FleetConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Agents) == 0 {
		return nil, fmt.Errorf("no agents configured")
	}
	if len(cfg.Routes) == 0 {
		return nil, fmt.Errorf("no routes configured")
	}
	for _, r := range cfg.Routes {
		if _, ok := cfg.Agents[r.Origin]; !ok {
			return nil, fmt.Errorf("route origin %q has no agent address", r.Origin)
		}
	}
	return &cfg, nil
}

func drive(cfg *FleetConfig, carsPerRoute, maxHops, parallel int, timeout time.Duration) []Trip {
	total := len(cfg.Routes) * carsPerRoute
	trips := make([]Trip, total)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(parallel)

	for i, route := range cfg.Routes {
		for j := 0; j < carsPerRoute; j++ {
			idx := i*carsPerRoute + j
			carID := fmt.Sprintf("car-%s-%s-%d", route.Origin, route.Destination, j+1)
			route := route
			g.Go(func() error {
				trips[idx] = driveCar(ctx, cfg.Agents, carID, route, maxHops, timeout)
				return nil
			})
		}
	}
	g.Wait() //nolint:errcheck // workers never return errors

	return trips
}

// driveCar walks one car from origin to destination, one agent query per hop.
func driveCar(ctx context.Context, agents map[string]string, carID string, route Route, maxHops int, timeout time.Duration) Trip {
	started := time.Now()
	trip := Trip{CarID: carID, Path: []string{route.Origin}}

	current := route.Origin
	for hop := 0; hop < maxHops; hop++ {
		if current == route.Destination {
			trip.Arrived = true
			trip.Took = time.Since(started)
			return trip
		}

		addr, ok := agents[current]
		if !ok {
			trip.Err = fmt.Errorf("no agent for node %q", current)
			trip.Took = time.Since(started)
			return trip
		}

		next, err := queryNextHop(ctx, addr, carID, route.Destination, timeout)
		if err != nil {
			trip.Err = err
			trip.Took = time.Since(started)
			return trip
		}

		trip.Path = append(trip.Path, next)
		current = next
	}

	trip.Err = fmt.Errorf("hop limit reached before %q", route.Destination)
	trip.Took = time.Since(started)
	return trip
}

// queryNextHop performs the single-exchange NEXT_EDGE protocol.
func queryNextHop(ctx context.Context, addr, carID, destination string, timeout time.Duration) (string, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("agent %s unreachable: %w", addr, err)
	}
	defer conn.Close() //nolint:errcheck

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}

	req := domain.NextEdgeRequest{
		Type:        domain.MessageTypeNextEdge,
		CarID:       carID,
		Destination: destination,
	}
	// One newline-free JSON message per direction
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode query: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return "", fmt.Errorf("failed to send query: %w", err)
	}

	var resp domain.NextEdgeResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("agent replied: %s", resp.Error)
	}
	return resp.NextEdge, nil
}

func report(trips []Trip) {
	sort.Slice(trips, func(i, j int) bool { return trips[i].CarID < trips[j].CarID })

	arrived := 0
	for _, trip := range trips {
		status := "FAILED"
		detail := ""
		if trip.Arrived {
			status = "ok"
			arrived++
		} else if trip.Err != nil {
			detail = " (" + trip.Err.Error() + ")"
		}
		fmt.Printf("  %-28s %-6s %2d hops %8s  %v%s\n",
			trip.CarID, status, len(trip.Path)-1, trip.Took.Round(time.Millisecond), trip.Path, detail)
	}
	fmt.Printf("Arrived: %d/%d\n", arrived, len(trips))
}
