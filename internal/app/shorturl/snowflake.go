package shorturl

import (
	"errors"
	"sync"
	"time"
)

// 雪花 ID 布局（64 位，最高位恒为 0）：
//
//	41 位毫秒时间戳（相对 epoch）| 10 位实例槽位 | 12 位毫秒内序列号
//
// 时间戳在最高位，保证 ID 随时间单调递增，Base62 编码后的短码
// 也因此大致按创建时间排序。
const (
	// snowflakeEpoch 是时间戳的起点（2010-11-04T01:42:54.657Z）。
	// 属于 ID 格式的一部分，上线后永远不能改。
	snowflakeEpoch int64 = 1288834974657

	slotBits     = 10
	sequenceBits = 12

	maxSlot     = int64(1)<<slotBits - 1     // 1023
	maxSequence = int64(1)<<sequenceBits - 1 // 4095

	slotShift      = sequenceBits
	timestampShift = slotBits + sequenceBits
)

// ErrClockRegression 表示本地时钟回拨，当前毫秒早于上一次发号的毫秒。
// 生成器不会吞掉回拨自行等待：重复 ID 的风险必须暴露给调用方，
// 由上层决定重试还是报错。
var ErrClockRegression = errors.New("snowflake: clock moved backwards")

// ErrInvalidSlot 表示槽位超出 0~1023。
var ErrInvalidSlot = errors.New("snowflake: slot out of range [0, 1023]")

// Generator 是进程内唯一的发号器。
//
// 槽位由部署方通过配置分配，同一时刻每个存活实例必须唯一，
// 这是跨实例不重号的前提；槽位怎么分（静态配置、注册中心租约）
// 不归这里管。
// (lastTimestamp, sequence) 这对滚动状态只在一把互斥锁内读写，
// 这是整条生成路径上唯一的临界区。
type Generator struct {
	mu   sync.Mutex
	slot int64

	lastTimestamp int64
	sequence      int64

	// now 返回当前 Unix 毫秒，测试时注入假时钟
	now func() int64
}

// NewGenerator 创建槽位为 slot 的发号器。槽位非法时返回 ErrInvalidSlot。
func NewGenerator(slot int64) (*Generator, error) {
	if slot < 0 || slot > maxSlot {
		return nil, ErrInvalidSlot
	}
	return &Generator{
		slot:          slot,
		lastTimestamp: -1,
		now:           func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// NextID 产出下一个 ID。
//
// 同一毫秒内序列号加一；4096 个号用尽时原地自旋等到下一毫秒，
// 等待发生在锁内，后来的调用排队即可，不会观察到重号。
// 时钟回拨直接返回 ErrClockRegression，状态保持不变。
func (g *Generator) NextID() (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now()
	if ts < g.lastTimestamp {
		return 0, ErrClockRegression
	}

	if ts == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// 当前毫秒发满了，自旋到时钟走入下一毫秒
			for ts <= g.lastTimestamp {
				ts = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTimestamp = ts

	id := uint64(ts-snowflakeEpoch)<<timestampShift |
		uint64(g.slot)<<slotShift |
		uint64(g.sequence)
	return id, nil
}

// NewCode 发一个号并编码成短码，短链创建路径用这一个入口。
func (g *Generator) NewCode() (string, error) {
	id, err := g.NextID()
	if err != nil {
		return "", err
	}
	return EncodeBase62(id), nil
}
