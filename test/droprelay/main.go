package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// droprelay is a lossy UDP relay standing in for an unreliable network link.
// Point the sender at the relay and the relay at the receiver; it forwards
// whole datagrams in both directions while randomly dropping a configurable
// fraction and optionally delaying each one. Datagrams are never split or
// merged, so each relayed datagram still carries exactly one segment.
var (
	listenPort int
	targetAddr string
	dropRate   float64
	delay      time.Duration
)

func init() {
	flag.IntVar(&listenPort, "port", 8901, "Relay listen port")
	flag.StringVar(&targetAddr, "target", "127.0.0.1:2000", "Target receiver address")
	flag.Float64Var(&dropRate, "droprate", 0.1, "Datagram drop rate (0.0-1.0)")
	flag.DurationVar(&delay, "delay", 0, "Fixed delay added to each forwarded datagram")
	flag.Parse()
}

type relay struct {
	clientConn *net.UDPConn // sender side, unconnected
	targetConn *net.UDPConn // receiver side, connected
	rng        *rand.Rand

	mu         sync.Mutex
	clientAddr *net.UDPAddr

	forwarded, dropped int
}

// forwardToTarget reads datagrams from the sender and relays them onward.
func (r *relay) forwardToTarget() {
	buffer := make([]byte, 64*1024)
	for {
		n, addr, err := r.clientConn.ReadFromUDP(buffer)
		if err != nil {
			log.Println("Relay client-side read ended:", err)
			return
		}

		r.mu.Lock()
		r.clientAddr = addr
		r.mu.Unlock()

		if r.rng.Float64() < dropRate {
			r.dropped++
			log.Printf("Dropped datagram sender->receiver (size: %d)\n", n)
			continue
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		if _, err := r.targetConn.Write(buffer[:n]); err != nil {
			log.Println("Relay target-side write ended:", err)
			return
		}
		r.forwarded++
	}
}

// forwardToClient reads the receiver's replies and relays them back.
func (r *relay) forwardToClient() {
	buffer := make([]byte, 64*1024)
	for {
		n, err := r.targetConn.Read(buffer)
		if err != nil {
			log.Println("Relay target-side read ended:", err)
			return
		}

		r.mu.Lock()
		addr := r.clientAddr
		r.mu.Unlock()
		if addr == nil {
			continue // no sender seen yet
		}

		if r.rng.Float64() < dropRate {
			r.dropped++
			log.Printf("Dropped datagram receiver->sender (size: %d)\n", n)
			continue
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		if _, err := r.clientConn.WriteToUDP(buffer[:n], addr); err != nil {
			log.Println("Relay client-side write ended:", err)
			return
		}
		r.forwarded++
	}
}

func main() {
	listenAddr := &net.UDPAddr{IP: net.IPv4zero, Port: listenPort}
	clientConn, err := net.ListenUDP("udp4", listenAddr)
	if err != nil {
		log.Fatalf("Error binding relay port %d: %v", listenPort, err)
	}
	defer clientConn.Close()

	target, err := net.ResolveUDPAddr("udp4", targetAddr)
	if err != nil {
		log.Fatalf("Error resolving target %s: %v", targetAddr, err)
	}
	targetConn, err := net.DialUDP("udp4", nil, target)
	if err != nil {
		log.Fatalf("Error dialing target %s: %v", targetAddr, err)
	}
	defer targetConn.Close()

	r := &relay{
		clientConn: clientConn,
		targetConn: targetConn,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	log.Printf("Relaying :%d <-> %s with drop rate %.2f and delay %v\n", listenPort, targetAddr, dropRate, delay)

	go r.forwardToTarget()
	go r.forwardToClient()

	// Run until interrupted.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Printf("\n=== Relay Statistics ===\n")
	fmt.Printf("Forwarded datagrams: %d\n", r.forwarded)
	fmt.Printf("Dropped datagrams: %d\n", r.dropped)
}
