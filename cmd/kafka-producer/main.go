// Command kafka-producer generates synthetic survival times and publishes
// them to the score ingestion topic. Used for load testing the consumer
// path without running the game.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// scoreMessage mirrors the consumer's wire format
type scoreMessage struct {
	PlayerName string  `json:"player_name"`
	Time       float64 `json:"time"`
	Mode       string  `json:"mode"`
}

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
}

func playerName(rng *rand.Rand, players int) string {
	idx := rng.Intn(players)
	prefix := playerPrefixes[idx%len(playerPrefixes)]
	return fmt.Sprintf("%s%d", prefix, idx/len(playerPrefixes)+1)
}

// survivalTime draws a plausible click-game survival time in seconds,
// rounded to the 3 decimals the service stores.
func survivalTime(rng *rand.Rand) float64 {
	seconds := 3 + rng.ExpFloat64()*12
	return float64(int(seconds*1000)) / 1000
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "vanish-scores", "Kafka topic")
	players := flag.Int("players", 200, "Size of the synthetic player pool")
	rate := flag.Int("rate", 50, "Scores per second")
	hardRatio := flag.Float64("hard-ratio", 0.3, "Fraction of scores submitted in hard mode")
	duration := flag.Duration("duration", 0, "Duration to run (0 = until interrupted)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	log.Printf("producing to %s (topic %s): %d players, %d scores/sec, %.0f%% hard mode",
		*brokers, *topic, *players, *rate, *hardRatio*100)

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("failed to create producer: %v", err)
	}

	// Track producer results
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	send := func() {
		mode := "normal"
		if rng.Float64() < *hardRatio {
			mode = "hard"
		}
		msg := scoreMessage{
			PlayerName: playerName(rng, *players),
			Time:       survivalTime(rng),
			Mode:       mode,
		}

		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("failed to marshal message: %v", err)
			return
		}

		producer.Input() <- &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(msg.PlayerName),
			Value: sarama.ByteEncoder(data),
		}
	}

	report := time.NewTicker(5 * time.Second)
	defer report.Stop()

loop:
	for {
		select {
		case <-sigChan:
			log.Println("interrupted, shutting down")
			break loop
		case <-deadline:
			log.Println("duration elapsed, shutting down")
			break loop
		case <-report.C:
			log.Printf("sent=%d errors=%d", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
		case <-ticker.C:
			send()
		}
	}

	producer.AsyncClose()
	wg.Wait()
	log.Printf("done: sent=%d errors=%d", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
}
