package notify

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

// dsnParams はテナントのデータベースを開くときのプラグマ。
const dsnParams = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// foldFunc は文字列の大文字小文字を畳み込むSQL関数の名前。
// SQLite組み込みのLOWERとLIKEはASCII以外の文字を畳み込まない。
const foldFunc = "notify_fold"

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction(foldFunc, 1, foldValue); err != nil {
		panic(fmt.Sprintf("SQL関数 %s の登録に失敗: %v", foldFunc, err))
	}
}

// fold は検索語と列の値に共通する大文字小文字の畳み込み。
func fold(s string) string {
	return strings.ToLower(s)
}

func foldValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return fold(v), nil
	case []byte:
		return fold(string(v)), nil
	default:
		return v, nil
	}
}

// Registry はテナントとStoreの対応を管理する。
// テナントの名前空間はdataDir配下のテナントごとのSQLiteデータベースファイル。
type Registry struct {
	dataDir string
	mu      sync.RWMutex
	stores  map[string]*Store
	now     func() time.Time
}

// NewRegistry は新しいRegistryを生成する。dataDirが存在しない場合は作成する。
func NewRegistry(dataDir string) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("データディレクトリ %s の作成に失敗: %w", dataDir, err)
	}
	return &Registry{
		dataDir: dataDir,
		stores:  make(map[string]*Store),
		now:     time.Now,
	}, nil
}

// SchemaName はテナントの名前空間名を返す。
func SchemaName(tenant string) string {
	return tenant + "_mod_notify"
}

func (r *Registry) path(tenant string) string {
	return filepath.Join(r.dataDir, SchemaName(tenant)+".db")
}

func namespaceMissing(tenant string) *Error {
	return newError(KindNamespaceMissing, `relation "%s.%s" does not exist`, SchemaName(tenant), tableName)
}

// Store はテナントのStoreを返す。
// 名前空間が作成されていない場合はKindNamespaceMissingのエラーを返す。
// 再起動前に作成された名前空間は最初のアクセス時に開く。
func (r *Registry) Store(tenant string) (*Store, error) {
	r.mu.RLock()
	s, ok := r.stores[tenant]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[tenant]; ok {
		return s, nil
	}

	exists, err := r.exists(tenant)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, namespaceMissing(tenant)
	}
	s, err = r.open(tenant)
	if err != nil {
		return nil, err
	}
	r.stores[tenant] = s
	return s, nil
}

// Provision はテナントの名前空間とスキーマを作成する。作成済みの場合は何もしない。
func (r *Registry) Provision(tenant string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stores[tenant]
	if !ok {
		var err error
		if s, err = r.open(tenant); err != nil {
			return err
		}
	}
	if err := initSchema(s.db.DB); err != nil {
		if !ok {
			_ = s.Close()
		}
		return fmt.Errorf("テナント %s の初期化に失敗: %w", tenant, err)
	}
	r.stores[tenant] = s
	return nil
}

// Deprovision はテナントの名前空間を閉じて削除する。
func (r *Registry) Deprovision(tenant string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[tenant]; ok {
		delete(r.stores, tenant)
		if err := s.Close(); err != nil {
			return fmt.Errorf("テナント %s のデータベースのクローズに失敗: %w", tenant, err)
		}
	}

	exists, err := r.exists(tenant)
	if err != nil {
		return err
	}
	if !exists {
		return namespaceMissing(tenant)
	}

	path := r.path(tenant)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s の削除に失敗: %w", p, err)
		}
	}
	return nil
}

// Close は開いているすべてのStoreを閉じる。
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, s := range r.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("テナント %s: %w", s.Tenant(), err))
		}
		delete(r.stores, s.Tenant())
	}
	return errors.Join(errs...)
}

func (r *Registry) exists(tenant string) (bool, error) {
	_, err := os.Stat(r.path(tenant))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("テナント %s の名前空間の確認に失敗: %w", tenant, err)
	}
	return true, nil
}

func (r *Registry) open(tenant string) (*Store, error) {
	db, err := sqlx.Open("sqlite", r.path(tenant)+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("テナント %s のデータベース接続に失敗: %w", tenant, err)
	}
	return &Store{tenant: tenant, db: db, now: r.now}, nil
}
