package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"bookring/internal/search"
	"bookring/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token string `json:"token"`
}

type authResponse struct {
	Token string `json:"token"`
}

type bookSearchResponse struct {
	Query string        `json:"query"`
	Items []models.Book `json:"items"`
}

type listingListResponse struct {
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Items  []models.ListingDetail `json:"items"`
}

func main() {
	global := flag.NewFlagSet("bookring", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	client := &http.Client{Timeout: 15 * time.Second}

	switch cmd {
	case "auth":
		handleAuth(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "books":
		handleBooks(ctx, client, *baseURL, sub, args[2:])
	case "listings":
		handleListings(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "import":
		handleImport(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "feed":
		handleFeed(*baseURL, sub, args[2:])
	case "chat":
		handleChat(*baseURL, *tokenPath, sub, args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password (prompted if empty)")
		_ = fs.Parse(args)

		if *email == "" {
			log.Fatal("email is required")
		}
		pass := *password
		if pass == "" {
			var err error
			pass, err = readPassword("Password: ")
			if err != nil {
				log.Fatalf("read password: %v", err)
			}
		}

		payload := map[string]string{"email": *email, "password": pass}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/login", "", payload, &resp); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ logged in")
	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password (prompted if empty)")
		name := fs.String("name", "", "display name")
		lat := fs.Float64("lat", 0, "home latitude")
		lon := fs.Float64("lon", 0, "home longitude")
		_ = fs.Parse(args)

		if *username == "" || *email == "" {
			log.Fatal("username and email are required")
		}
		pass := *password
		if pass == "" {
			var err error
			pass, err = readPassword("Password: ")
			if err != nil {
				log.Fatalf("read password: %v", err)
			}
		}

		payload := map[string]any{"username": *username, "email": *email, "password": pass}
		if *name != "" {
			payload["name"] = *name
		}
		if hasFlag(fs, "lat") && hasFlag(fs, "lon") {
			payload["latitude"] = *lat
			payload["longitude"] = *lon
		}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/register", "", payload, &resp); err != nil {
			log.Fatalf("register failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ registered and logged in")
	case "logout":
		token := mustToken(tokenPath)
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/logout", token, nil, nil); err != nil {
			log.Printf("server logout failed: %v", err)
		}
		if err := clearToken(tokenPath); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		fmt.Println("✅ logged out")
	default:
		log.Fatal("usage: bookring auth <login|register|logout>")
	}
}

func handleBooks(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "search":
		fs := flag.NewFlagSet("books search", flag.ExitOnError)
		query := fs.String("q", "", "title search query (min 2 chars)")
		_ = fs.Parse(args)
		if *query == "" {
			log.Fatal("q is required")
		}

		resp, err := searchBooks(ctx, client, baseURL, *query)
		if err != nil {
			log.Fatalf("search failed: %v", err)
		}
		printJSON(resp)
	case "find":
		fs := flag.NewFlagSet("books find", flag.ExitOnError)
		_ = fs.Parse(args)
		runInteractiveSearch(ctx, client, baseURL)
	case "show":
		fs := flag.NewFlagSet("books show", flag.ExitOnError)
		id := fs.String("id", "", "book id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("book id is required")
		}

		var resp models.Book
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/books/"+url.PathEscape(*id), "", nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	case "browse":
		fs := flag.NewFlagSet("books browse", flag.ExitOnError)
		query := fs.String("q", "", "title or author filter")
		category := fs.String("category", "", "category filter")
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/books")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		if *query != "" {
			qv.Set("q", *query)
		}
		if *category != "" {
			qv.Set("category", *category)
		}
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		qv.Set("offset", fmt.Sprintf("%d", *offset))
		u.RawQuery = qv.Encode()

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			log.Fatalf("browse failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: bookring books <search|find|show|browse>")
	}
}

func handleListings(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "list":
		fs := flag.NewFlagSet("listings list", flag.ExitOnError)
		category := fs.String("category", "", "category filter")
		lat := fs.Float64("lat", 0, "viewer latitude")
		lon := fs.Float64("lon", 0, "viewer longitude")
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/listings")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		if *category != "" {
			qv.Set("category", *category)
		}
		if hasFlag(fs, "lat") && hasFlag(fs, "lon") {
			qv.Set("lat", fmt.Sprintf("%f", *lat))
			qv.Set("lon", fmt.Sprintf("%f", *lon))
		}
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		qv.Set("offset", fmt.Sprintf("%d", *offset))
		u.RawQuery = qv.Encode()

		var resp listingListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printListings(resp)
	case "nearby":
		fs := flag.NewFlagSet("listings nearby", flag.ExitOnError)
		lat := fs.Float64("lat", 0, "viewer latitude")
		lon := fs.Float64("lon", 0, "viewer longitude")
		limit := fs.Int("limit", 20, "page size")
		_ = fs.Parse(args)
		if !hasFlag(fs, "lat") || !hasFlag(fs, "lon") {
			log.Fatal("lat and lon are required")
		}

		u, err := url.Parse(baseURL + "/listings/nearby")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		qv.Set("lat", fmt.Sprintf("%f", *lat))
		qv.Set("lon", fmt.Sprintf("%f", *lon))
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		u.RawQuery = qv.Encode()

		var resp listingListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			log.Fatalf("nearby failed: %v", err)
		}
		printListings(resp)
	case "show":
		fs := flag.NewFlagSet("listings show", flag.ExitOnError)
		id := fs.String("id", "", "listing id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("listing id is required")
		}

		var resp models.ListingDetail
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/listings/"+url.PathEscape(*id), "", nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	case "add":
		fs := flag.NewFlagSet("listings add", flag.ExitOnError)
		isbn := fs.String("isbn", "", "isbn to look up (alternative to -title)")
		title := fs.String("title", "", "book title")
		author := fs.String("author", "", "book author")
		condition := fs.String("condition", "Good", "book condition")
		notes := fs.String("notes", "", "condition notes")
		duration := fs.Int("duration", 14, "lending duration in days")
		pickup := fs.String("pickup", "", "pickup preferences")
		_ = fs.Parse(args)
		if *isbn == "" && *title == "" {
			log.Fatal("isbn or title is required")
		}
		token := mustToken(tokenPath)

		payload := map[string]any{
			"condition":          *condition,
			"condition_notes":    *notes,
			"lending_duration":   *duration,
			"pickup_preferences": *pickup,
		}
		if *isbn != "" {
			payload["isbn"] = *isbn
		} else {
			book := map[string]any{"title": *title}
			if *author != "" {
				book["authors"] = []string{*author}
			}
			payload["book"] = book
		}
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/listings", token, payload, &resp); err != nil {
			log.Fatalf("add failed: %v", err)
		}
		printJSON(resp)
	case "mine":
		fs := flag.NewFlagSet("listings mine", flag.ExitOnError)
		_ = fs.Parse(args)
		token := mustToken(tokenPath)

		var resp listingListResponse
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/users/me/listings", token, nil, &resp); err != nil {
			log.Fatalf("mine failed: %v", err)
		}
		printListings(resp)
	case "availability":
		fs := flag.NewFlagSet("listings availability", flag.ExitOnError)
		id := fs.String("id", "", "listing id")
		available := fs.Bool("available", true, "availability")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("listing id is required")
		}
		token := mustToken(tokenPath)

		payload := map[string]any{"available": *available}
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodPatch, baseURL+"/listings/"+url.PathEscape(*id)+"/availability", token, payload, &resp); err != nil {
			log.Fatalf("availability failed: %v", err)
		}
		printJSON(resp)
	case "rm":
		fs := flag.NewFlagSet("listings rm", flag.ExitOnError)
		id := fs.String("id", "", "listing id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("listing id is required")
		}
		token := mustToken(tokenPath)

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodDelete, baseURL+"/listings/"+url.PathEscape(*id), token, nil, &resp); err != nil {
			log.Fatalf("rm failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: bookring listings <list|nearby|show|add|mine|availability|rm>")
	}
}

func handleImport(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "csv":
		fs := flag.NewFlagSet("import csv", flag.ExitOnError)
		file := fs.String("file", "", "CSV file path")
		_ = fs.Parse(args)
		if *file == "" {
			log.Fatal("file is required")
		}
		token := mustToken(tokenPath)

		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("read csv: %v", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/import/csv", strings.NewReader(string(data)))
		if err != nil {
			log.Fatalf("build request: %v", err)
		}
		req.Header.Set("Content-Type", "text/csv")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			log.Fatalf("import failed: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 300 {
			log.Fatalf("import failed: %s", strings.TrimSpace(string(body)))
		}
		fmt.Println(string(body))
	default:
		log.Fatal("usage: bookring import csv")
	}
}

func handleFeed(baseURL, sub string, args []string) {
	switch sub {
	case "listen":
		fs := flag.NewFlagSet("feed listen", flag.ExitOnError)
		addr := fs.String("addr", "127.0.0.1:7070", "TCP feed server address")
		pretty := fs.Bool("pretty", true, "pretty print JSON events")
		_ = fs.Parse(args)
		for {
			if err := runFeedTCP(*addr, *pretty); err != nil {
				log.Printf("[feed] disconnected: %v", err)
			}
			time.Sleep(1 * time.Second)
		}
	case "subscribe":
		fs := flag.NewFlagSet("feed subscribe", flag.ExitOnError)
		wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws/feed on API host)")
		_ = fs.Parse(args)

		endpoint := *wsURL
		if endpoint == "" {
			var err error
			endpoint, err = websocketURL(baseURL, "/ws/feed", nil)
			if err != nil {
				log.Fatalf("ws url: %v", err)
			}
		}
		if err := runFeedWS(endpoint); err != nil {
			log.Fatalf("subscribe failed: %v", err)
		}
	default:
		log.Fatal("usage: bookring feed <listen|subscribe>")
	}
}

func handleChat(baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "join":
		fs := flag.NewFlagSet("chat join", flag.ExitOnError)
		peer := fs.String("peer", "", "peer user id")
		_ = fs.Parse(args)
		if *peer == "" {
			log.Fatal("peer is required")
		}
		token := mustToken(tokenPath)

		endpoint, err := websocketURL(baseURL, "/ws/chat", url.Values{
			"token": {token},
			"peer":  {*peer},
		})
		if err != nil {
			log.Fatalf("ws url: %v", err)
		}
		if err := runChatWS(endpoint); err != nil {
			log.Fatalf("chat join failed: %v", err)
		}
	default:
		log.Fatal("usage: bookring chat join")
	}
}

// runInteractiveSearch reads queries from stdin and fires a debounced
// title search for the last one typed within the window.
func runInteractiveSearch(ctx context.Context, client *http.Client, baseURL string) {
	fmt.Println("type a title fragment and press enter (min 2 chars, blank line to quit)")

	deb := search.NewDebouncer(300*time.Millisecond, func(q string) {
		resp, err := searchBooks(ctx, client, baseURL, q)
		if err != nil {
			log.Printf("search %q: %v", q, err)
			return
		}
		if len(resp.Items) == 0 {
			fmt.Printf("no matches for %q\n", resp.Query)
			return
		}
		for _, b := range resp.Items {
			fmt.Printf("  %s — %s (%s)\n", b.Title, b.Author, b.ID)
		}
	})
	defer deb.Stop()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			return
		}
		deb.Trigger(text)
	}
}

func searchBooks(ctx context.Context, client *http.Client, baseURL, query string) (bookSearchResponse, error) {
	u, err := url.Parse(baseURL + "/books/search")
	if err != nil {
		return bookSearchResponse{}, err
	}
	qv := u.Query()
	qv.Set("q", query)
	u.RawQuery = qv.Encode()

	var resp bookSearchResponse
	if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
		return bookSearchResponse{}, err
	}
	return resp, nil
}

func runFeedTCP(addr string, pretty bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", addr)
	reader := bufio.NewScanner(conn)
	for reader.Scan() {
		line := reader.Bytes()
		if !pretty {
			fmt.Println(string(line))
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			fmt.Println(string(line))
			continue
		}
		b, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Println(string(b))
	}
	if err := reader.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

func runFeedWS(wsURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[feed] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Println(string(msg))
	}
}

func runChatWS(wsURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Println("[chat] connected, type messages and press enter")

	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				log.Printf("[chat] closed: %v", err)
				os.Exit(0)
			}
			var m map[string]any
			if err := json.Unmarshal(msg, &m); err != nil {
				fmt.Println(string(msg))
				continue
			}
			switch m["type"] {
			case "message":
				fmt.Printf("%v: %v\n", m["sender"], m["text"])
			default:
				fmt.Printf("* %v %v\n", m["sender"], m["type"])
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		payload, _ := json.Marshal(map[string]string{"text": text})
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	return nil
}

func printListings(resp listingListResponse) {
	for _, item := range resp.Items {
		distance := item.Distance
		if distance == "" {
			distance = "Distance unknown"
		}
		status := "available"
		if !item.Available {
			status = "lent out"
		}
		fmt.Printf("%s — %s (%s, %s, %s) [%s]\n",
			item.Book.Title, item.Book.Author, item.Condition, status, distance, item.ID)
	}
	fmt.Printf("%d of %d listings\n", len(resp.Items), resp.Total)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

// hasFlag reports whether the user set the flag explicitly, so zero
// coordinates are distinguishable from absent ones.
func hasFlag(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.bookring-token.json"
	}
	return filepath.Join(home, ".bookring", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	return strings.TrimSpace(td.Token), nil
}

func mustToken(path string) string {
	token, err := readToken(path)
	if err != nil {
		log.Fatalf("token not found, please login: %v", err)
	}
	if token == "" {
		log.Fatal("token empty, please login")
	}
	return token
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func websocketURL(baseURL, path string, query url.Values) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	out := &url.URL{Scheme: scheme, Host: u.Host, Path: path}
	if query != nil {
		out.RawQuery = query.Encode()
	}
	return out.String(), nil
}

func printUsage() {
	fmt.Println("bookring <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|register|logout")
	fmt.Println("  books search|find|show|browse")
	fmt.Println("  listings list|nearby|show|add|mine|availability|rm")
	fmt.Println("  import csv")
	fmt.Println("  feed listen|subscribe")
	fmt.Println("  chat join")
}
