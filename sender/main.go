package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/karstonkellyusd/rdt/config"
	"github.com/karstonkellyusd/rdt/lib"
)

// sender transfers stdin to a listening receiver, one segment's worth of
// payload at a time: sender [-config file] [-redial] <host> <port> < data
func main() {
	configPath := flag.String("config", "", "path to yaml configuration (optional)")
	redial := flag.Bool("redial", false, "restart the whole session if the handshake gives up")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		log.Fatalf("usage: %s [-config file] [-redial] host port < data", os.Args[0])
	}
	host := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil {
		log.Fatalf("Invalid port %q: %v", args[1], err)
	}

	if *configPath != "" {
		config.AppConfig, err = config.ReadConfig(*configPath)
		if err != nil {
			log.Fatalln("Configuration file error:", err)
		}
	} else {
		config.AppConfig = config.DefaultConfig()
	}

	coreConfig := &lib.RdtCoreConfig{
		PayloadPoolSize:      config.AppConfig.PayloadPoolSize,
		MaxSegmentSize:       config.AppConfig.MaxSegmentSize,
		PoolDebug:            config.AppConfig.PoolDebug,
		ProcessTimeThreshold: config.AppConfig.ProcessTimeThreshold,
	}
	core, err := lib.NewRdtCore(coreConfig)
	if err != nil {
		log.Fatalln("Error creating RDT core:", err)
	}
	defer core.Close()

	connConfig := connConfigFromApp(config.AppConfig)

	conn, err := core.DialRdt(host, port, connConfig)
	if err != nil {
		if !*redial {
			log.Fatalln("Error connecting:", err)
		}
		helper := lib.NewRedialHelper(core, host, port, connConfig, lib.DefaultRedialConfig())
		conn = helper.Redial(err)
		if conn == nil {
			log.Fatalln("Error connecting: all redial attempts failed")
		}
	}

	reader := bufio.NewReader(os.Stdin)
	buffer := make([]byte, lib.MaxDataSize)
	var sent int64

	for {
		n, err := reader.Read(buffer)
		if n > 0 {
			if _, serr := conn.Send(buffer[:n]); serr != nil {
				log.Fatalln("Error sending data:", serr)
			}
			sent += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalln("Error reading input:", err)
		}
	}

	fmt.Fprintf(os.Stderr, "Sent %d bytes; estimated RTT at completion: %d ms\n", sent, conn.GetEstimatedRTT())

	if err := conn.Close(); err != nil {
		log.Fatalln("Error closing connection:", err)
	}
}

func connConfigFromApp(cfg *config.Config) *lib.ConnectionConfig {
	return &lib.ConnectionConfig{
		MaxAttempts:      cfg.MaxAttempts,
		CloseMaxAttempts: cfg.CloseMaxAttempts,
		InitialRTT:       cfg.InitialRTT,
		InitialDevRTT:    cfg.InitialDevRTT,
		RTTCeiling:       cfg.RTTCeiling,
		MaxTimeout:       cfg.MaxTimeout,
		RTTGain:          cfg.RTTGain,
		BackoffFactor:    cfg.BackoffFactor,
		TimeoutFactor:    cfg.TimeoutFactor,
	}
}
