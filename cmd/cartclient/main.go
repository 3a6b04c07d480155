// cartclient is a CLI tool for exercising the cart proxy.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	cartclient cart -proxy URL -session ID
//	cartclient add -proxy URL -session ID -product N [-qty N]
//	cartclient update -proxy URL -session ID -item ITEM -qty N
//	cartclient remove -proxy URL -session ID -item ITEM
//	cartclient login -proxy URL -session ID -provider google -token TOKEN
//	cartclient logout -proxy URL -session ID
//	cartclient products -proxy URL [-search TERM] [-limit N]
//	cartclient summary -proxy URL -session ID
//
// Examples:
//
//	SID=$(cartclient session)
//	cartclient add -session $SID -product 60 -qty 2
//	cartclient cart -session $SID
//	cartclient login -session $SID -provider google -token "$GOOGLE_TOKEN"
package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	proxyURL  string
	sessionID string
	quiet     bool
	noColor   bool
	verbose   bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen = "", "", ""
	colorYellow, colorCyan, colorGray, colorBold = "", "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "session":
		runSession()
	case "cart":
		runCart(args)
	case "add":
		runAdd(args)
	case "update":
		runUpdate(args)
	case "remove":
		runRemove(args)
	case "login":
		runLogin(args)
	case "logout":
		runLogout(args)
	case "products":
		runProducts(args)
	case "summary":
		runSummary(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cartclient - cart proxy test tool

Usage:
  cartclient <command> [options]

Commands:
  session   Generate a fresh session ID
  cart      Show the session's cart
  add       Add a product to the cart
  update    Change a cart item's quantity
  remove    Remove a cart item
  login     Exchange a provider token and merge the guest cart
  logout    Drop the session's tokens
  products  List or search the catalog
  summary   Show the checkout order summary

Examples:
  # Mint a session and build a cart
  SID=$(cartclient session)
  cartclient add -session $SID -product 60 -qty 2
  cartclient cart -session $SID

  # Log in; the guest cart merges into the account
  cartclient login -session $SID -provider google -token "$GOOGLE_TOKEN"

Run 'cartclient <command> -h' for command-specific options.
`)
}

// commonFlags registers the flags every command shares.
func commonFlags(fs *flag.FlagSet, needSession bool) {
	fs.StringVar(&proxyURL, "proxy", "http://localhost:8080", "cart proxy base URL")
	if needSession {
		fs.StringVar(&sessionID, "session", "", "session ID (required)")
	}
	fs.BoolVar(&quiet, "q", false, "Quiet mode - minimal output")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
}

func parseCommon(fs *flag.FlagSet, args []string, needSession bool) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
	if needSession && sessionID == "" {
		fs.Usage()
		os.Exit(1)
	}
}

func runSession() {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		fatal("generating session ID: %v", err)
	}
	fmt.Println(hex.EncodeToString(b[:]))
}

func runCart(args []string) {
	fs := flag.NewFlagSet("cart", flag.ExitOnError)
	commonFlags(fs, true)
	parseCommon(fs, args, true)

	resp, err := doRequest("GET", "/cart", nil)
	if err != nil {
		fatal("Failed to fetch cart: %v", err)
	}
	printCart(resp)
}

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	commonFlags(fs, true)
	var productID int64
	var quantity int
	fs.Int64Var(&productID, "product", 0, "Product ID (required)")
	fs.IntVar(&quantity, "qty", 1, "Quantity")
	parseCommon(fs, args, true)

	if productID == 0 {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", "/cart/items", map[string]any{
		"product_id": productID,
		"quantity":   quantity,
	})
	if err != nil {
		fatal("Failed to add item: %v", err)
	}

	printSuccess("Queued: product %d x%d", productID, quantity)
	printCart(resp)
}

func runUpdate(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	commonFlags(fs, true)
	var itemID string
	var quantity int
	fs.StringVar(&itemID, "item", "", "Cart item ID (required)")
	fs.IntVar(&quantity, "qty", -1, "New quantity; 0 removes the item (required)")
	parseCommon(fs, args, true)

	if itemID == "" || quantity < 0 {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("PATCH", "/cart/items/"+url.PathEscape(itemID), map[string]any{
		"quantity": quantity,
	})
	if err != nil {
		fatal("Failed to update item: %v", err)
	}

	printSuccess("Queued: %s -> qty %d", itemID, quantity)
	printCart(resp)
}

func runRemove(args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	commonFlags(fs, true)
	var itemID string
	fs.StringVar(&itemID, "item", "", "Cart item ID (required)")
	parseCommon(fs, args, true)

	if itemID == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("DELETE", "/cart/items/"+url.PathEscape(itemID), nil)
	if err != nil {
		fatal("Failed to remove item: %v", err)
	}

	printSuccess("Queued: remove %s", itemID)
	printCart(resp)
}

func runLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	commonFlags(fs, true)
	var provider, token string
	fs.StringVar(&provider, "provider", "google", "OAuth provider")
	fs.StringVar(&token, "token", "", "Provider access token (required)")
	parseCommon(fs, args, true)

	if token == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", "/auth/login", map[string]any{
		"provider":     provider,
		"access_token": token,
	})
	if err != nil {
		fatal("Login failed: %v", err)
	}

	if quiet {
		fmt.Println("authenticated")
		return
	}
	printSuccess("Logged in via %s", provider)
	if user, ok := resp["user"]; ok && user != nil {
		data, _ := json.Marshal(user)
		fmt.Printf("  User: %s%s%s\n", colorCyan, data, colorReset)
	}
}

func runLogout(args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	commonFlags(fs, true)
	parseCommon(fs, args, true)

	if _, err := doRequest("POST", "/auth/logout", nil); err != nil {
		fatal("Logout failed: %v", err)
	}
	printSuccess("Logged out")
}

func runProducts(args []string) {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	commonFlags(fs, false)
	var search, ordering string
	var limit int
	fs.StringVar(&search, "search", "", "Search term")
	fs.StringVar(&ordering, "ordering", "", "Sort order (e.g. price, -price)")
	fs.IntVar(&limit, "limit", 10, "Page size")
	parseCommon(fs, args, false)

	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	if search != "" {
		q.Set("search", search)
	}
	if ordering != "" {
		q.Set("ordering", ordering)
	}

	resp, err := doRequest("GET", "/products?"+q.Encode(), nil)
	if err != nil {
		fatal("Failed to list products: %v", err)
	}

	results, _ := resp["results"].([]interface{})
	count, _ := resp["count"].(float64)
	if quiet {
		fmt.Println(int(count))
		return
	}
	printSuccess("%d products (showing %d)", int(count), len(results))
	for _, p := range results {
		pm, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		fmt.Printf("  %s%v%s  %s (%v)\n", colorCyan, pm["id"], colorReset, pm["name"], formatPrice(pm["price"]))
	}
}

func runSummary(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	commonFlags(fs, true)
	parseCommon(fs, args, true)

	resp, err := doRequest("GET", "/checkout/summary", nil)
	if err != nil {
		fatal("Failed to fetch summary: %v", err)
	}

	if quiet {
		fmt.Println(resp["total"])
		return
	}
	printSuccess("Order summary")
	if items, ok := resp["items"].([]interface{}); ok {
		for _, it := range items {
			im, ok := it.(map[string]interface{})
			if !ok {
				continue
			}
			product, _ := im["product"].(map[string]interface{})
			fmt.Printf("  %v x %v\n", im["quantity"], product["name"])
		}
	}
	fmt.Printf("  Subtotal: %s%v%s\n", colorGreen, resp["subtotal"], colorReset)
	fmt.Printf("  Total:    %s%v%s\n", colorGreen, resp["total"], colorReset)
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func doRequest(method, path string, body interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, proxyURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "cart_session", Value: sessionID})
	}

	if !quiet {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if len(respBody) == 0 {
		return map[string]interface{}{}, nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return result, nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printCart(resp map[string]interface{}) {
	if quiet {
		data, _ := json.Marshal(resp)
		fmt.Println(string(data))
		return
	}

	items, _ := resp["items"].([]interface{})
	if len(items) == 0 {
		fmt.Printf("  %s(empty cart)%s\n", colorGray, colorReset)
		return
	}
	for _, it := range items {
		im, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		product, _ := im["product"].(map[string]interface{})
		name, _ := product["name"].(string)
		if name == "" {
			name = fmt.Sprintf("product %v", product["id"])
		}
		fmt.Printf("  %s%v%s  %v x %s (%v)\n",
			colorCyan, im["id"], colorReset, im["quantity"], name, formatPrice(product["price"]))
	}
	fmt.Printf("  Subtotal: %s%v%s\n", colorGreen, resp["subtotal"], colorReset)
}

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}

	output := pretty.String()
	if !verbose {
		lines := strings.Split(output, "\n")
		if len(lines) > 30 {
			lines = append(lines[:25], fmt.Sprintf("%s  %s(%d more lines, use -v for full output)%s", prefix, colorGray, len(lines)-25, colorReset))
			output = strings.Join(lines, "\n")
		}
	}
	fmt.Println(output)
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func formatPrice(v interface{}) string {
	if s, ok := v.(string); ok {
		return "$" + s
	}
	return fmt.Sprintf("%v", v)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
