package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gocopy/clob/types"
	"github.com/betbot/gocopy/internal/metrics"
)

var auditLog = logrus.WithField("component", "audit")

// header CSV 表头，列序固定
var header = []string{
	"timestamp", "block", "token_id", "usd", "shares", "price", "side",
	"status", "top_bid_price", "top_bid_size", "top_ask_price", "top_ask_size",
	"tx_hash", "is_live",
}

// Row 一条审计记录。订单引擎为每个处理过的鲸鱼事件写一行；
// 重试链终结时重试器另写一行（区块号与交易哈希留空）。
type Row struct {
	Timestamp   time.Time
	BlockNumber uint64
	TokenID     string
	USDValue    float64
	Shares      float64
	Price       float64
	Side        types.Side
	Status      string
	TopBidPrice string
	TopBidSize  string
	TopAskPrice string
	TopAskSize  string
	TxHash      string
	IsLive      bool
}

// Writer 后台 CSV 审计写入器。
//
// Record 永不阻塞调用方：通道满时丢弃并记日志。
// 文件以追加模式打开，新文件写入表头。
type Writer struct {
	ch   chan Row
	done chan struct{}
	file *os.File
	csv  *csv.Writer
}

// NewWriter 打开（或创建）审计文件并启动后台写入协程
func NewWriter(path string) (*Writer, error) {
	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "打开审计文件失败")
	}

	w := &Writer{
		ch:   make(chan Row, 256),
		done: make(chan struct{}),
		file: f,
		csv:  csv.NewWriter(f),
	}

	if fresh {
		if err := w.csv.Write(header); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "写入审计表头失败")
		}
		w.csv.Flush()
	}

	go w.loop()
	auditLog.WithField("path", path).Info("📝 审计日志已就绪")
	return w, nil
}

// Record 投递一条审计记录，通道满时丢弃
func (w *Writer) Record(row Row) {
	select {
	case w.ch <- row:
	default:
		auditLog.WithField("tx", row.TxHash).Warn("❌ 审计通道已满，记录被丢弃")
	}
}

// Close 关闭写入器，排干已投递的记录后落盘
func (w *Writer) Close() {
	close(w.ch)
	<-w.done
}

func (w *Writer) loop() {
	defer close(w.done)
	for row := range w.ch {
		if err := w.csv.Write(row.fields()); err != nil {
			auditLog.WithError(err).Warn("❌ 审计写入失败")
			continue
		}
		w.csv.Flush()
		metrics.AuditRowsWritten.Add(1)
	}
	if err := w.csv.Error(); err != nil {
		auditLog.WithError(err).Warn("❌ 审计落盘失败")
	}
	w.file.Close()
}

func (r Row) fields() []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		strconv.FormatUint(r.BlockNumber, 10),
		r.TokenID,
		fmt.Sprintf("%.6f", r.USDValue),
		fmt.Sprintf("%.6f", r.Shares),
		fmt.Sprintf("%.4f", r.Price),
		string(r.Side),
		r.Status,
		r.TopBidPrice,
		r.TopBidSize,
		r.TopAskPrice,
		r.TopAskSize,
		r.TxHash,
		strconv.FormatBool(r.IsLive),
	}
}
