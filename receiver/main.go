package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/karstonkellyusd/rdt/config"
	"github.com/karstonkellyusd/rdt/lib"
)

// receiver accepts one session and writes the received data to stdout:
// receiver [-config file] [-ip addr] <port> > data
func main() {
	configPath := flag.String("config", "", "path to yaml configuration (optional)")
	localIP := flag.String("ip", "0.0.0.0", "local IP address to bind")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		log.Fatalf("usage: %s [-config file] [-ip addr] port > data", os.Args[0])
	}
	port, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatalf("Invalid port %q: %v", args[0], err)
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

	connConfig := &lib.ConnectionConfig{
		MaxAttempts:      config.AppConfig.MaxAttempts,
		CloseMaxAttempts: config.AppConfig.CloseMaxAttempts,
		InitialRTT:       config.AppConfig.InitialRTT,
		InitialDevRTT:    config.AppConfig.InitialDevRTT,
		RTTCeiling:       config.AppConfig.RTTCeiling,
		MaxTimeout:       config.AppConfig.MaxTimeout,
		RTTGain:          config.AppConfig.RTTGain,
		BackoffFactor:    config.AppConfig.BackoffFactor,
		TimeoutFactor:    config.AppConfig.TimeoutFactor,
	}

	conn, err := core.ListenRdt(*localIP, port, connConfig)
	if err != nil {
		log.Fatalln("Error accepting connection:", err)
	}

	buffer := make([]byte, lib.MaxDataSize)
	var received int64

	for {
		n, err := conn.Receive(buffer)
		if err == io.EOF {
			break // peer requested close
		}
		if err != nil {
			log.Fatalln("Error receiving data:", err)
		}
		if _, werr := os.Stdout.Write(buffer[:n]); werr != nil {
			log.Fatalln("Error writing output:", werr)
		}
		received += int64(n)
	}

	fmt.Fprintf(os.Stderr, "Received %d bytes; estimated RTT at completion: %d ms\n", received, conn.GetEstimatedRTT())

	if err := conn.Close(); err != nil {
		log.Fatalln("Error closing connection:", err)
	}
}
