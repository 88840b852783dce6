package main

import (
    "encoding/json"
    "flag"
    "fmt"
    "io"
    "net/http"
    "os"

    "github.com/davidkarpay/warden/internal/dump"
)

func main() {
    addr := flag.String("addr", "http://127.0.0.1:8080", "Warden agent base URL")
    out := flag.String("out", "", "Write the fetched report to this file (a .gz suffix compresses)")
    flag.Parse()
    if flag.NArg() < 1 {
        usage()
        os.Exit(2)
    }
    cmd := flag.Arg(0)
    switch cmd {
    case "status":
        doGET(*addr + "/healthz")
    case "report":
        if *out != "" {
            saveReport(*addr+"/v1/report", *out)
            return
        }
        doGET(*addr + "/v1/report")
    case "stats":
        doGET(*addr + "/v1/stats")
    case "handles":
        doGET(*addr + "/v1/handles")
    case "reclaim":
        doPOST(*addr + "/v1/handles:reclaim")
    case "cleanup":
        doPOST(*addr + "/v1/cleanup")
    case "monitor-start":
        url := *addr + "/v1/monitor:start"
        if flag.NArg() >= 2 { url += "?interval=" + flag.Arg(1) }
        doPOST(url)
    case "monitor-stop":
        doPOST(*addr + "/v1/monitor:stop")
    default:
        usage()
        os.Exit(2)
    }
}

func usage() {
    fmt.Println("wardenctl [--addr URL] [--out FILE] <command> [args]")
    fmt.Println("commands:")
    fmt.Println("  status                   Agent liveness and fd limit info")
    fmt.Println("  report                   Comprehensive resource report (--out saves it)")
    fmt.Println("  stats                    Handle registry counters")
    fmt.Println("  handles                  List open handles")
    fmt.Println("  reclaim                  Close handles owned by dead workers")
    fmt.Println("  cleanup                  Emergency: close all handles and collect")
    fmt.Println("  monitor-start [interval] Start the sampling loop (e.g. 10s)")
    fmt.Println("  monitor-stop             Stop the sampling loop")
}

func fetchJSON(url string) any {
    resp, err := http.Get(url)
    if err != nil { fmt.Fprintln(os.Stderr, err); os.Exit(1) }
    defer resp.Body.Close()
    if resp.StatusCode >= 300 { io.Copy(os.Stderr, resp.Body); os.Exit(1) }
    var v any
    if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
    return v
}

func doGET(url string) {
    v := fetchJSON(url)
    b, _ := json.MarshalIndent(v, "", "  ")
    os.Stdout.Write(b)
    fmt.Println()
}

func saveReport(url, out string) {
    v := fetchJSON(url)
    if err := dump.Write(out, v); err != nil { fmt.Fprintln(os.Stderr, err); os.Exit(1) }
    fmt.Printf("report written to %s\n", out)
}

func doPOST(url string) {
    req, _ := http.NewRequest("POST", url, nil)
    resp, err := http.DefaultClient.Do(req)
    if err != nil { fmt.Fprintln(os.Stderr, err); os.Exit(1) }
    defer resp.Body.Close()
    if resp.StatusCode >= 300 { io.Copy(os.Stderr, resp.Body); os.Exit(1) }
    var v any
    if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
        fmt.Println("OK")
        return
    }
    b, _ := json.MarshalIndent(v, "", "  ")
    os.Stdout.Write(b)
    fmt.Println()
}
