package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sawpanic/cryptoquote/internal/quote"
)

const (
	namesPrompt = "Enter the names of the cryptocurrencies: "
	retryPrompt = "Would you like to retry? (y/n): "
)

// Console is the line-oriented user interface of a session. When
// interactive is false prompts are not printed, but input is still read.
type Console struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func New(in io.Reader, out io.Writer, interactive bool) *Console {
	return &Console{in: bufio.NewReader(in), out: out, interactive: interactive}
}

// Welcome prints the greeting.
func (c *Console) Welcome() {
	fmt.Fprintln(c.out, "\nWelcome to the Crypto Price Tracker CLI!")
	fmt.Fprintln(c.out, "Type the names of the cryptocurrencies you want prices for, separated by commas.")
}

// ReadNames prompts for a comma-separated list and returns the parsed names.
func (c *Console) ReadNames(ctx context.Context) ([]string, error) {
	c.prompt(namesPrompt)
	line, err := c.readLine(ctx)
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, err
	}
	return quote.ParseNames(line), nil
}

// Retry asks whether to retry a failed coin list fetch. It implements
// directory.Decider; only "y" (any case) accepts.
func (c *Console) Retry(ctx context.Context, _ int, _ error) bool {
	c.prompt(retryPrompt)
	line, err := c.readLine(ctx)
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

// CacheHit implements directory.Observer.
func (c *Console) CacheHit(string, time.Duration) {
	fmt.Fprintln(c.out, "Loading coin list from cache...")
}

// Fetching implements directory.Observer.
func (c *Console) Fetching(int) {
	fmt.Fprintln(c.out, "Fetching the latest coin list from CoinGecko...")
}

// FetchFailed implements directory.Observer.
func (c *Console) FetchFailed(_ int, err error) {
	fmt.Fprintf(c.out, "Failed to fetch the coin list: %v\n", err)
}

// FetchingPrices announces the price lookups.
func (c *Console) FetchingPrices() {
	fmt.Fprintln(c.out, "\nFetching prices...")
}

// Report prints the quote table.
func (c *Console) Report(quotes []quote.Quote) error {
	return WriteReport(c.out, quotes)
}

func (c *Console) prompt(text string) {
	if c.interactive {
		fmt.Fprint(c.out, text)
	}
}

// readLine reads one line without its terminator. It returns early with the
// context error if ctx ends first; the pending read is abandoned.
func (c *Console) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		done <- result{line: strings.TrimRight(line, "\r\n"), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.line, r.err
	}
}
