// FilePath: cmd/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	tm "github.com/buger/goterm"
	"github.com/hydrozen/leakwatch/internal/config"
	"github.com/hydrozen/leakwatch/internal/server"
	nuts "github.com/vaudience/go-nuts"
)

func main() {
	nuts.InitVersion()
	drawBanner(nuts.GetVersion())

	cfg, err := config.Load()
	if err != nil {
		nuts.L.Fatalf("[Main] Failed to load configuration: %v", err)
	}
	printSummary(cfg)
	nuts.L.Infof("[Main] Starting Leakwatch v%s (%s storage, %s notifications)",
		nuts.GetVersion(), cfg.Database.Driver, cfg.Notification.Channel)

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

var bannerLines = []string{
	"    __               __                    __       __  ",
	"   / /   ___  ____ _/ /___      ______ _/ /______/ /_ ",
	"  / /   / _ \\/ __ `/ //_/ | /| / / __ `/ __/ ___/ __ \\",
	" / /___/  __/ /_/ / ,<  | |/ |/ / /_/ / /_/ /__/ / / /",
	"/_____/\\___/\\__,_/_/|_| |__/|__/\\__,_/\\__/\\___/_/ /_/ ",
}

// drawBanner clears the console and prints the logo with the build version
func drawBanner(version string) {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Println()
	for _, line := range bannerLines {
		tm.Println(tm.Color(line, tm.CYAN))
	}
	tm.Println(strings.Repeat(".", len(bannerLines[0])) + "  " + tm.Bold(version))
	tm.Flush()
}

// printSummary shows the resolved runtime settings before any backend is
// contacted, so a misconfigured deployment is visible in the first lines.
func printSummary(cfg *config.Config) {
	mqtt := "disabled"
	if cfg.MQTT.Broker != "" {
		mqtt = cfg.MQTT.Broker
	}
	auth := "dev headers"
	if cfg.Keycloak.URL != "" {
		auth = "keycloak " + cfg.Keycloak.Realm
	}

	table := tm.NewTable(0, 10, 2, ' ', 0)
	fmt.Fprintf(table, "listen\t%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(table, "storage\t%s\n", cfg.Database.Driver)
	fmt.Fprintf(table, "auth\t%s\n", auth)
	fmt.Fprintf(table, "telemetry\t%s\n", mqtt)
	fmt.Fprintf(table, "nodes\t%s / %s (%s)\n", cfg.Anomaly.NodeA, cfg.Anomaly.NodeB, cfg.Anomaly.Variant)
	fmt.Fprintf(table, "notify\t%s\n", cfg.Notification.Channel)
	tm.Println(table)
	tm.Flush()
}
