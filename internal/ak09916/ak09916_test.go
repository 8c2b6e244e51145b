package ak09916

import (
	"testing"
	"time"

	"imud/internal/imu"
)

type bridgeOp struct {
	op    string
	addr  uint8
	reg   uint8
	value uint8
}

type fakeBridge struct {
	ops []bridgeOp

	// readData is returned by the next SlaveRead calls; readFail makes
	// them report a failed transfer.
	readData []byte
	readFail bool
}

func (b *fakeBridge) SlaveRegisterStartRead(addr, reg uint8) {
	b.ops = append(b.ops, bridgeOp{op: "startRead", addr: addr, reg: reg})
}

func (b *fakeBridge) SlaveRegisterWrite(addr, reg, value uint8) {
	b.ops = append(b.ops, bridgeOp{op: "write", addr: addr, reg: reg, value: value})
}

func (b *fakeBridge) SlaveReadEnable(addr, reg, size uint8) {
	b.ops = append(b.ops, bridgeOp{op: "readEnable", addr: addr, reg: reg, value: size})
}

func (b *fakeBridge) SlaveRead(buf []byte) bool {
	b.ops = append(b.ops, bridgeOp{op: "read"})
	copy(buf, b.readData)
	return !b.readFail
}

func (b *fakeBridge) lastWrite(reg uint8) (uint8, bool) {
	for i := len(b.ops) - 1; i >= 0; i-- {
		if b.ops[i].op == "write" && b.ops[i].reg == reg {
			return b.ops[i].value, true
		}
	}
	return 0, false
}

type fakeStream struct {
	batches []imu.Batch
	errors  int
	temps   []float64

	rate      float64
	scale     float64
	fullRange float64
}

func (s *fakeStream) Publish(b imu.Batch) { s.batches = append(s.batches, b) }

func (s *fakeStream) ReportError() { s.errors++ }

func (s *fakeStream) SetTemperature(degC float64) { s.temps = append(s.temps, degC) }

func (s *fakeStream) SetRate(hz float64) { s.rate = hz }

func (s *fakeStream) SetScale(scale, fr float64) { s.scale, s.fullRange = scale, fr }

// bringUp walks the device through reset, settle and ID check into the
// continuous read state.
func bringUp(t *testing.T, b *fakeBridge, d *Device, start time.Time) time.Time {
	t.Helper()

	d.Collect(start) // issues the soft reset
	at := start.Add(resetSettle + time.Millisecond)
	d.Collect(at) // arms the WIA2 read
	at = at.Add(bridgeSettle + time.Millisecond)
	b.readData = []byte{deviceID}
	d.Collect(at) // checks the ID, enables continuous mode
	if d.state != stateRead {
		t.Fatalf("state=%v want read", d.state)
	}
	return at
}

func TestNew_SetsRateAndScale(t *testing.T) {
	mag := &fakeStream{}
	_, err := New(&fakeBridge{}, mag)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if mag.rate != 100 {
		t.Fatalf("rate=%v want 100", mag.rate)
	}
	if mag.scale != 0.15 || mag.fullRange != 4912 {
		t.Fatalf("scale=%v range=%v", mag.scale, mag.fullRange)
	}

	if _, err := New(nil, mag); err == nil {
		t.Fatalf("expected error for nil bridge")
	}
}

func TestCollect_BringUpSequence(t *testing.T) {
	b := &fakeBridge{}
	mag := &fakeStream{}
	d, err := New(b, mag)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Unix(1000, 0)
	d.Collect(start)
	if v, ok := b.lastWrite(regCNTL3); !ok || v != cntl3SoftReset {
		t.Fatalf("CNTL3 write=%v,%v want soft reset", v, ok)
	}

	// Inside the settle window nothing further happens.
	d.Collect(start.Add(resetSettle / 2))
	if len(b.ops) != 1 {
		t.Fatalf("ops=%v want only the reset write", b.ops)
	}

	at := start.Add(resetSettle + time.Millisecond)
	d.Collect(at)
	if d.state != stateCheckID {
		t.Fatalf("state=%v want check id", d.state)
	}

	b.readData = []byte{deviceID}
	d.Collect(at.Add(bridgeSettle + time.Millisecond))
	if d.state != stateRead {
		t.Fatalf("state=%v want read", d.state)
	}
	if v, ok := b.lastWrite(regCNTL2); !ok || v != cntl2Continuous100Hz {
		t.Fatalf("CNTL2 write=%v,%v want continuous mode", v, ok)
	}

	var sawWindow bool
	for _, op := range b.ops {
		if op.op == "readEnable" && op.addr == I2CAddr && op.reg == regST1 && op.value == readLen {
			sawWindow = true
		}
	}
	if !sawWindow {
		t.Fatalf("expected ST1 read window armed, ops=%v", b.ops)
	}
}

func TestCollect_BadIDRestartsBringUp(t *testing.T) {
	b := &fakeBridge{}
	d, err := New(b, &fakeStream{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Unix(1000, 0)
	d.Collect(start)
	at := start.Add(resetSettle + time.Millisecond)
	d.Collect(at)

	b.readData = []byte{0xFF}
	d.Collect(at.Add(bridgeSettle + time.Millisecond))
	if d.state != stateReset {
		t.Fatalf("state=%v want reset", d.state)
	}
	if d.badID.Load() != 1 {
		t.Fatalf("badID=%d want 1", d.badID.Load())
	}
}

func TestCollect_PublishesSample(t *testing.T) {
	b := &fakeBridge{}
	mag := &fakeStream{}
	d, err := New(b, mag)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	at := bringUp(t, b, d, time.Unix(1000, 0))

	// Little-endian x=100, y=200, z=-32768, DRDY set, no overflow.
	b.readData = []byte{
		st1DataReady,
		100, 0,
		200, 0,
		0x00, 0x80,
		0, // dummy
		0, // ST2
	}
	at = at.Add(sampleInterval)
	d.Collect(at)

	if len(mag.batches) != 1 {
		t.Fatalf("batches=%v want 1", mag.batches)
	}
	got := mag.batches[0]
	if got.Samples != 1 || got.DT != sampleInterval || !got.Timestamp.Equal(at) {
		t.Fatalf("batch=%+v", got)
	}
	if got.X[0] != 100 || got.Y[0] != -200 || got.Z[0] != 32767 {
		t.Fatalf("sample=%d/%d/%d", got.X[0], got.Y[0], got.Z[0])
	}
}

func TestCollect_NoDataReadySkips(t *testing.T) {
	b := &fakeBridge{}
	mag := &fakeStream{}
	d, err := New(b, mag)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	at := bringUp(t, b, d, time.Unix(1000, 0))

	b.readData = make([]byte, readLen)
	d.Collect(at.Add(sampleInterval))
	if len(mag.batches) != 0 || mag.errors != 0 {
		t.Fatalf("stale status must publish nothing: %v", mag.batches)
	}
}

func TestCollect_OverflowDropsSample(t *testing.T) {
	b := &fakeBridge{}
	mag := &fakeStream{}
	d, err := New(b, mag)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	at := bringUp(t, b, d, time.Unix(1000, 0))

	data := make([]byte, readLen)
	data[0] = st1DataReady
	data[8] = st2Overflow
	b.readData = data
	d.Collect(at.Add(sampleInterval))

	if len(mag.batches) != 0 {
		t.Fatalf("overflowed sample must be dropped")
	}
	if mag.errors != 1 || d.overflow.Load() != 1 {
		t.Fatalf("errors=%d overflow=%d", mag.errors, d.overflow.Load())
	}
}

func TestCollect_FailedTransferReportsError(t *testing.T) {
	b := &fakeBridge{}
	mag := &fakeStream{}
	d, err := New(b, mag)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	at := bringUp(t, b, d, time.Unix(1000, 0))

	b.readFail = true
	d.Collect(at.Add(sampleInterval))
	if mag.errors != 1 || d.badTransfer.Load() != 1 {
		t.Fatalf("errors=%d badTransfer=%d", mag.errors, d.badTransfer.Load())
	}
}
