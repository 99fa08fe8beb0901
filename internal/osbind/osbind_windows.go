//go:build windows

package osbind

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	ps "github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/windows"
)

// x/sys/windows does not wrap every WinAPI entry point this binding needs
// (console-session lookup, WTS user tokens, and profile environment
// blocks live in kernel32/wtsapi32/userenv respectively but have no Go
// binding upstream), so they are declared directly against the same DLLs
// the rest of the ecosystem reaches for in this situation.
var (
	modkernel32  = windows.NewLazySystemDLL("kernel32.dll")
	modwtsapi32  = windows.NewLazySystemDLL("wtsapi32.dll")
	moduserenv   = windows.NewLazySystemDLL("userenv.dll")
	modiphlpapi  = windows.NewLazySystemDLL("iphlpapi.dll")

	procWTSGetActiveConsoleSessionId = modkernel32.NewProc("WTSGetActiveConsoleSessionId")
	procWTSQueryUserToken             = modwtsapi32.NewProc("WTSQueryUserToken")
	procCreateEnvironmentBlock        = moduserenv.NewProc("CreateEnvironmentBlock")
	procDestroyEnvironmentBlock       = moduserenv.NewProc("DestroyEnvironmentBlock")
	procGetExtendedTcpTable           = modiphlpapi.NewProc("GetExtendedTcpTable")
)

const (
	tokenAssignPrimary = windows.TOKEN_ASSIGN_PRIMARY
	tokenDuplicate     = windows.TOKEN_DUPLICATE
	tokenQuery         = windows.TOKEN_QUERY
	tokenRights        = tokenAssignPrimary | tokenDuplicate | tokenQuery

	errNoTokenSoft         = windows.Errno(1008) // ERROR_NO_TOKEN
	errAccessDeniedSoft    = windows.Errno(5)    // ERROR_ACCESS_DENIED
	errPrivNotHeldSoft     = windows.Errno(1314) // ERROR_PRIVILEGE_NOT_HELD

	afInet              = 2
	tcpTableOwnerPidAll = 5 // TCP_TABLE_OWNER_PID_ALL
)

// WindowsBinding is the production osbind.Binding backed by real Win32 calls.
type WindowsBinding struct{}

// NewWindowsBinding constructs the production binding.
func NewWindowsBinding() *WindowsBinding {
	return &WindowsBinding{}
}

// New constructs the platform binding cmd/gpii-service should use.
func New() Binding {
	return NewWindowsBinding()
}

var _ Binding = (*WindowsBinding)(nil)

func (b *WindowsBinding) ActiveConsoleSessionID() uint32 {
	r, _, _ := procWTSGetActiveConsoleSessionId.Call()
	return uint32(r)
}

func (b *WindowsBinding) CurrentProcessToken() (Token, error) {
	var h windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), tokenRights, &h); err != nil {
		return Token{}, fmt.Errorf("open current process token: %w", err)
	}
	return tokenFromHandle(h), nil
}

func (b *WindowsBinding) QueryUserToken(sessionID uint32) (Token, error) {
	if sessionID == NoSessionID {
		return Token{}, ErrNoInteractiveUser
	}

	var rawToken windows.Handle
	ret, _, callErr := procWTSQueryUserToken.Call(uintptr(sessionID), uintptr(unsafe.Pointer(&rawToken)))
	if ret == 0 {
		if isSoftNoUserError(callErr) {
			return Token{}, ErrNoInteractiveUser
		}
		return Token{}, fmt.Errorf("WTSQueryUserToken: %w", callErr)
	}

	return tokenFromHandle(windows.Token(rawToken)), nil
}

func isSoftNoUserError(err error) bool {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case errNoTokenSoft, errAccessDeniedSoft, errPrivNotHeldSoft:
		return true
	default:
		return false
	}
}

func (b *WindowsBinding) EnvironmentForToken(token Token) (EnvironmentBlock, error) {
	if !token.Valid() {
		ownToken, err := b.CurrentProcessToken()
		if err != nil {
			return EnvironmentBlock{}, fmt.Errorf("resolve current process token: %w", err)
		}
		defer ownToken.Close()
		token = ownToken
	}

	h := nativeHandle(token)

	var envBlockPtr uintptr
	ret, _, callErr := procCreateEnvironmentBlock.Call(
		uintptr(unsafe.Pointer(&envBlockPtr)),
		uintptr(h),
		0, // bInherit = FALSE, always start from the target user's registry profile
	)
	if ret == 0 {
		return EnvironmentBlock{}, fmt.Errorf("CreateEnvironmentBlock: %w", callErr)
	}
	defer procDestroyEnvironmentBlock.Call(envBlockPtr)

	return EnvironmentBlock{vars: decodeEnvironmentBlock(envBlockPtr)}, nil
}

// decodeEnvironmentBlock reads a double-NUL-terminated UCS-2 block into a
// slice of "NAME=VALUE" strings.
func decodeEnvironmentBlock(ptr uintptr) []string {
	var vars []string
	base := (*uint16)(unsafe.Pointer(ptr))
	// SAFETY: base points into a live envBlockPtr for the duration of this
	// call; the caller holds the DestroyEnvironmentBlock defer until we return.
	words := unsafe.Slice(base, 1<<20)

	start := 0
	for i := 0; ; i++ {
		if words[i] == 0 {
			if i == start {
				break // double NUL: end of block
			}
			vars = append(vars, windows.UTF16ToString(words[start:i]))
			start = i + 1
		}
	}
	return vars
}

func (b *WindowsBinding) CreateProcessAsUser(token Token, opts StartupOpts) (ProcessInfo, error) {
	if !token.Valid() {
		// The zero Token is the "use the current process token" sentinel
		// (opts.always_run's fallback); CreateProcessAsUser needs a real
		// handle, so acquire and own a fresh one for the duration of this call.
		ownToken, err := b.CurrentProcessToken()
		if err != nil {
			return ProcessInfo{}, fmt.Errorf("resolve current process token: %w", err)
		}
		defer ownToken.Close()
		token = ownToken
	}

	envBlockU16, err := opts.Env.ToBlock()
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("serialize environment block: %w", err)
	}

	cmdLineU16, err := windows.UTF16PtrFromString(opts.CommandLine)
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("encode command line: %w", err)
	}

	var curDirU16 *uint16
	if opts.CurrentDir != "" {
		curDirU16, err = windows.UTF16PtrFromString(opts.CurrentDir)
		if err != nil {
			return ProcessInfo{}, fmt.Errorf("encode working directory: %w", err)
		}
	}

	desktop, err := windows.UTF16PtrFromString(`winsta0\default`)
	if err != nil {
		return ProcessInfo{}, err
	}

	si := &rawStartupInfo{Desktop: desktop}
	inheritHandles := false

	if len(opts.InheritHandles) > 0 {
		inheritHandles = true
		si.Flags |= windows.STARTF_USESTDHANDLES
		si.StdInput = windows.Handle(windows.Stdin)
		si.StdOutput = windows.Handle(windows.Stdout)
		si.StdErr = windows.Handle(windows.Stderr)

		allHandles := make([]uintptr, 0, 3+len(opts.InheritHandles))
		allHandles = append(allHandles, uintptr(si.StdInput), uintptr(si.StdOutput), uintptr(si.StdErr))
		for _, ih := range opts.InheritHandles {
			if err := setHandleInheritable(windows.Handle(ih.Handle)); err != nil {
				return ProcessInfo{}, fmt.Errorf("mark handle inheritable: %w", err)
			}
			allHandles = append(allHandles, ih.Handle)
		}

		blob := buildInheritanceBlob(allHandles)
		si.CbReserved2 = uint16(len(blob))
		si.Reserved2 = &blob[0]
	}
	si.Cb = uint32(unsafe.Sizeof(*si))

	creationFlags := uint32(windows.CREATE_UNICODE_ENVIRONMENT | windows.CREATE_NEW_CONSOLE)

	var pi windows.ProcessInformation
	err = windows.CreateProcessAsUser(
		nativeHandle(token),
		nil,
		cmdLineU16,
		nil,
		nil,
		inheritHandles,
		creationFlags,
		(*uint16)(unsafe.Pointer(&envBlockU16[0])),
		curDirU16,
		(*windows.StartupInfo)(unsafe.Pointer(si)),
		&pi,
	)
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("CreateProcessAsUser: %w", err)
	}
	defer windows.CloseHandle(pi.Thread)
	defer windows.CloseHandle(pi.Process)

	startTime := time.Now()
	if proc, procErr := ps.NewProcess(int32(pi.ProcessId)); procErr == nil {
		if ts, tsErr := proc.CreateTime(); tsErr == nil {
			startTime = time.UnixMilli(ts)
		}
	}

	return ProcessInfo{Pid: pi.ProcessId, StartTime: startTime}, nil
}

func setHandleInheritable(h windows.Handle) error {
	return windows.SetHandleInformation(h, windows.HANDLE_FLAG_INHERIT, windows.HANDLE_FLAG_INHERIT)
}

// buildInheritanceBlob packs the CRT-compatible structure the Microsoft C
// runtime reads from the startup info's lpReserved2 field:
// `int count; u8 flags[count]; u64 handles[count];`, with
// flags[i] = FOPEN (0x01) for every slot so the child's runtime materializes
// each handle as an open file descriptor, in order from fd 0. The caller
// passes the three std handles first, so extra handles start at fd 3.
func buildInheritanceBlob(handles []uintptr) []byte {
	const fopen = 0x01

	count := len(handles)
	buf := make([]byte, 4+count+count*8)

	putUint32LE(buf[0:4], uint32(count))
	for i := 0; i < count; i++ {
		buf[4+i] = fopen
	}
	base := 4 + count
	for i, h := range handles {
		putUint64LE(buf[base+i*8:base+i*8+8], uint64(h))
	}
	return buf
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// rawStartupInfo mirrors STARTUPINFOW field-for-field. x/sys/windows.StartupInfo
// hides Reserved2 behind a blank field, which makes it impossible to attach a
// CRT-compatible handle-inheritance blob through the exported type; this
// struct has the identical layout with Reserved2 exported, and is handed to
// CreateProcessAsUser via an unsafe.Pointer cast.
type rawStartupInfo struct {
	Cb            uint32
	Reserved      *uint16
	Desktop       *uint16
	Title         *uint16
	X             uint32
	Y             uint32
	XSize         uint32
	YSize         uint32
	XCountChars   uint32
	YCountChars   uint32
	FillAttribute uint32
	Flags         uint32
	ShowWindow    uint16
	CbReserved2   uint16
	Reserved2     *byte
	StdInput      windows.Handle
	StdOutput     windows.Handle
	StdErr        windows.Handle
}

func (b *WindowsBinding) CreatePipePair(name string) (PipeServer, uintptr, error) {
	nameU16, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, 0, err
	}

	serverHandle, err := windows.CreateNamedPipe(
		nameU16,
		windows.PIPE_ACCESS_DUPLEX,
		windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES,
		4096, 4096, 0, nil,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("CreateNamedPipe: %w", err)
	}

	clientHandle, err := windows.CreateFile(
		nameU16,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		_ = windows.CloseHandle(serverHandle)
		return nil, 0, fmt.Errorf("open client side of pipe: %w", err)
	}

	if err := windows.ConnectNamedPipe(serverHandle, nil); err != nil && !errors.Is(err, windows.ERROR_PIPE_CONNECTED) {
		_ = windows.CloseHandle(serverHandle)
		_ = windows.CloseHandle(clientHandle)
		return nil, 0, fmt.Errorf("ConnectNamedPipe: %w", err)
	}

	return &namedPipeServer{h: serverHandle}, uintptr(clientHandle), nil
}

type namedPipeServer struct {
	h        windows.Handle
	closeMu  sync.Mutex
	closed   bool
}

func (p *namedPipeServer) Read(buf []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(p.h, buf, &n, nil)
	return int(n), err
}

func (p *namedPipeServer) Write(buf []byte) (int, error) {
	var n uint32
	err := windows.WriteFile(p.h, buf, &n, nil)
	return int(n), err
}

func (p *namedPipeServer) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	windows.DisconnectNamedPipe(p.h)
	return windows.CloseHandle(p.h)
}

// TCPTable reads the IPv4 TCP connection table with owning pids, applying
// the documented port-masking and byte-swap rules and growing the buffer
// with a reallocation margin to tolerate concurrent growth of the table.
func (b *WindowsBinding) TCPTable() ([]TCPTableEntry, error) {
	const margin = 128 // bytes of slack between size probe and fetch

	var size uint32
	procGetExtendedTcpTable.Call(0, uintptr(unsafe.Pointer(&size)), 0, afInet, tcpTableOwnerPidAll, 0)
	if size == 0 {
		return nil, nil
	}
	size += margin

	buf := make([]byte, size)
	ret, _, _ := procGetExtendedTcpTable.Call(
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)),
		0, afInet, tcpTableOwnerPidAll, 0,
	)
	if ret != 0 {
		return nil, fmt.Errorf("GetExtendedTcpTable failed with code %d", ret)
	}

	return parseTCPTable(buf), nil
}

// mibTcpRowOwnerPid mirrors the MIB_TCPROW_OWNER_PID layout.
type mibTcpRowOwnerPid struct {
	State      uint32
	LocalAddr  uint32
	LocalPort  uint32
	RemoteAddr uint32
	RemotePort uint32
	OwningPid  uint32
}

func parseTCPTable(buf []byte) []TCPTableEntry {
	if len(buf) < 4 {
		return nil
	}
	count := *(*uint32)(unsafe.Pointer(&buf[0]))
	rowSize := int(unsafe.Sizeof(mibTcpRowOwnerPid{}))
	entries := make([]TCPTableEntry, 0, count)

	for i := uint32(0); i < count; i++ {
		offset := 4 + int(i)*rowSize
		if offset+rowSize > len(buf) {
			break
		}
		row := (*mibTcpRowOwnerPid)(unsafe.Pointer(&buf[offset]))
		entries = append(entries, TCPTableEntry{
			LocalAddr:  addrBytes(row.LocalAddr),
			LocalPort:  unmaskPort(row.LocalPort),
			RemoteAddr: addrBytes(row.RemoteAddr),
			RemotePort: unmaskPort(row.RemotePort),
			OwningPid:  row.OwningPid,
			State:      row.State,
		})
	}
	return entries
}

func addrBytes(addr uint32) [4]byte {
	return [4]byte{byte(addr), byte(addr >> 8), byte(addr >> 16), byte(addr >> 24)}
}

// unmaskPort applies the documented `& 0xFFFF` mask (the high 16 bits of
// the port fields are documented as uninitialized) and swaps out of
// network byte order.
func unmaskPort(raw uint32) uint16 {
	masked := uint16(raw & 0xFFFF)
	return (masked >> 8) | (masked << 8)
}

func (b *WindowsBinding) WaitForProcess(ctx context.Context, pid uint32, startTime time.Time) error {
	h, err := windows.OpenProcess(windows.SYNCHRONIZE, false, pid)
	if err != nil {
		return fmt.Errorf("open process %d for wait: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	done := make(chan error, 1)
	go func() {
		event, waitErr := windows.WaitForSingleObject(h, windows.INFINITE)
		if waitErr != nil {
			done <- waitErr
			return
		}
		if event != windows.WAIT_OBJECT_0 {
			done <- fmt.Errorf("unexpected wait result %d", event)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *WindowsBinding) IsProcessAlive(pid uint32) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	const stillActive = 259

	var exitCode uint32
	if err := windows.GetExitCodeProcess(h, &exitCode); err != nil {
		return false
	}
	return exitCode == stillActive
}

func (b *WindowsBinding) CloseHandle(handle uintptr) error {
	if handle == 0 {
		return nil
	}
	return windows.CloseHandle(windows.Handle(handle))
}
