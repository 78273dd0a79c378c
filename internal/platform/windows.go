//go:build windows

package platform

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"slices"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	dnsapi                   = windows.NewLazySystemDLL("dnsapi.dll")
	procDnsGetCacheDataTable = dnsapi.NewProc("DnsGetCacheDataTable")
	procDnsFree              = dnsapi.NewProc("DnsFree")
)

const (
	dnsFreeFlat       = 0
	dnsFreeRecordList = 1
	// DNS_QUERY_NO_WIRE_QUERY answers from the local cache only.
	dnsQueryNoWireQuery = 0x00000010
)

// dnsCacheEntry mirrors DNS_CACHE_ENTRY as returned by DnsGetCacheDataTable.
type dnsCacheEntry struct {
	next       *dnsCacheEntry
	name       *uint16
	recordType uint16
	dataLength uint16
	flags      uint32
}

// powerShellCacheScript keeps successfully resolved A and AAAA entries.
const powerShellCacheScript = `Get-DnsClientCache | Where-Object { ($_.Type -eq 1 -or $_.Type -eq 28) -and $_.Status -eq 0 -and $_.Name } | Select-Object -ExpandProperty Name -Unique`

// win32Foreground uses GetForegroundWindow and GetWindowThreadProcessId.
type win32Foreground struct{}

func (win32Foreground) ForegroundProcess(ctx context.Context) (ProcessRef, error) {
	if err := ctx.Err(); err != nil {
		return ProcessRef{}, err
	}
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return ProcessRef{}, ErrNoForeground
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return ProcessRef{}, fmt.Errorf("GetWindowThreadProcessId: %w", err)
	}
	if pid == 0 {
		return ProcessRef{}, ErrNoForeground
	}
	return ProcessRef{PID: pid}, nil
}

// win32Resolver reads the image path with QueryFullProcessImageName, which
// only needs PROCESS_QUERY_LIMITED_INFORMATION and so works for elevated
// processes too.
type win32Resolver struct{}

func (win32Resolver) ProcessName(ctx context.Context, ref ProcessRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, ref.PID)
	if err != nil {
		return "", fmt.Errorf("OpenProcess %d: %w", ref.PID, err)
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", fmt.Errorf("QueryFullProcessImageName %d: %w", ref.PID, err)
	}

	base := filepath.Base(windows.UTF16ToString(buf[:size]))
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "", fmt.Errorf("resolve pid %d: empty name", ref.PID)
	}
	return name, nil
}

// dnsCacheSource reads the resolver cache natively and falls back to
// PowerShell when the undocumented API is missing or fails.
type dnsCacheSource struct {
	fallback *CommandHostnameSource
}

func (s dnsCacheSource) ResolvedHostnames(ctx context.Context) (iter.Seq[string], error) {
	names, err := readDNSCache()
	if err == nil && len(names) > 0 {
		return slices.Values(names), nil
	}
	return s.fallback.ResolvedHostnames(ctx)
}

func readDNSCache() ([]string, error) {
	if err := procDnsGetCacheDataTable.Find(); err != nil {
		return nil, err
	}

	var head *dnsCacheEntry
	ok, _, callErr := procDnsGetCacheDataTable.Call(uintptr(unsafe.Pointer(&head)))
	if ok == 0 {
		if callErr != nil && !errors.Is(callErr, windows.ERROR_SUCCESS) {
			return nil, fmt.Errorf("DnsGetCacheDataTable: %w", callErr)
		}
		return nil, errors.New("DnsGetCacheDataTable failed")
	}

	var records []cacheRecord
	for e := head; e != nil; {
		next := e.next
		if e.name != nil {
			records = append(records, cacheRecord{Name: windows.UTF16PtrToString(e.name), Type: e.recordType})
			procDnsFree.Call(uintptr(unsafe.Pointer(e.name)), dnsFreeFlat)
		}
		procDnsFree.Call(uintptr(unsafe.Pointer(e)), dnsFreeFlat)
		e = next
	}

	return resolvedNames(records, cachedAnswer), nil
}

// cachedAnswer reports whether the cache holds a positive answer for r. The
// cache table also lists failed lookups, which DnsQuery reports as errors.
func cachedAnswer(r cacheRecord) bool {
	var rec *windows.DNSRecord
	if err := windows.DnsQuery(r.Name, r.Type, dnsQueryNoWireQuery, nil, &rec, nil); err != nil {
		return false
	}
	defer windows.DnsRecordListFree(rec, dnsFreeRecordList)
	return rec != nil
}

func newNative(opts Options) *Platform {
	timeout := opts.timeout()
	return &Platform{
		Foreground: win32Foreground{},
		Resolver:   win32Resolver{},
		Hostnames: dnsCacheSource{
			fallback: NewCommandHostnameSource(timeout,
				"powershell", "-NoProfile", "-NonInteractive", "-Command", powerShellCacheScript),
		},
	}
}
