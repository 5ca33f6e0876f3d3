package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
)

// GuessEvent is the message format for asynchronously submitted guesses
type GuessEvent struct {
	GameID string `json:"game_id"`
	Guess  string `json:"guess"`
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "hangman-guesses", "Kafka topic")
	gameID := flag.String("game", "", "Game ID to submit guesses for")
	guesses := flag.String("guesses", "", "Comma-separated guesses to send (reads stdin when empty)")
	flag.Parse()

	if *gameID == "" {
		log.Fatal("-game is required")
	}

	brokerList := strings.Split(*brokers, ",")

	// Configure Sarama producer. Events are keyed by game id so all
	// guesses for one game land on the same partition, in order.
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	// Handle producer errors and successes
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
			log.Printf("Producer error: %v", err)
		}
	}()

	sendGuess := func(guess string) {
		event := GuessEvent{
			GameID: *gameID,
			Guess:  guess,
		}
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}
		producer.Input() <- &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.GameID),
			Value: sarama.ByteEncoder(data),
		}
	}

	if *guesses != "" {
		for _, guess := range strings.Split(*guesses, ",") {
			sendGuess(strings.TrimSpace(guess))
		}
	} else {
		fmt.Println("Reading guesses from stdin, one per line (Ctrl+D to finish)")
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			sendGuess(strings.TrimSpace(scanner.Text()))
		}
		if err := scanner.Err(); err != nil {
			log.Printf("stdin read error: %v", err)
		}
	}

	producer.AsyncClose()
	wg.Wait()
	fmt.Printf("Done. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
}
