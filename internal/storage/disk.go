package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"hokensim-backend/internal/model"
	"hokensim-backend/pkg/logger"
)

// DiskStorage セッションを1件1ファイルのJSONとして保存する。
// sessions.json が一覧用のインデックス。直近のセッションはメモリに
// キャッシュし、cacheSize を超えたら古い順に追い出す。
type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.Session
	cacheSize int
}

type sessionIndex struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	ScenarioID string    `json:"scenario_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.Session),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	for _, dir := range []string{d.dataDir, d.sessionsDir(), filepath.Join(d.dataDir, "backup")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}

	if err := d.loadIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Info("ディスクストレージを初期化しました")
	return nil
}

func (d *DiskStorage) sessionsDir() string {
	return filepath.Join(d.dataDir, "sessions")
}

func (d *DiskStorage) sessionPath(sessionID string) string {
	return filepath.Join(d.sessionsDir(), sessionID+".json")
}

func (d *DiskStorage) indexPath() string {
	return filepath.Join(d.dataDir, "sessions.json")
}

func (d *DiskStorage) loadIndex() error {
	if _, err := os.Stat(d.indexPath()); os.IsNotExist(err) {
		return d.writeIndexLocked(nil)
	}

	data, err := os.ReadFile(d.indexPath())
	if err != nil {
		return err
	}

	var indexes []*sessionIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return err
	}

	for _, idx := range indexes {
		if len(d.cache) >= d.cacheSize {
			break
		}
		session, err := d.loadSessionFile(idx.ID)
		if err != nil {
			logger.Errorf("セッション %s の読み込みに失敗: %v", idx.ID, err)
			continue
		}
		d.cache[idx.ID] = session
	}

	return nil
}

func (d *DiskStorage) loadSessionFile(sessionID string) (*model.Session, error) {
	data, err := os.ReadFile(d.sessionPath(sessionID))
	if err != nil {
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	return &session, nil
}

// writeFileAtomic tmpに書いてからrenameする。書きかけのファイルを残さない。
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func (d *DiskStorage) saveSessionFile(session *model.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(d.sessionPath(session.ID), data)
}

func (d *DiskStorage) writeIndexLocked(indexes []*sessionIndex) error {
	if indexes == nil {
		indexes = []*sessionIndex{}
	}
	data, err := json.MarshalIndent(indexes, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(d.indexPath(), data)
}

// rebuildIndexLocked sessionsディレクトリを走査してインデックスを作り直す。
func (d *DiskStorage) rebuildIndexLocked() error {
	files, err := os.ReadDir(d.sessionsDir())
	if err != nil {
		return err
	}

	var indexes []*sessionIndex
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}
		sessionID := file.Name()[:len(file.Name())-5]
		session, err := d.loadSessionFile(sessionID)
		if err != nil {
			logger.Errorf("インデックス更新時にセッション %s の読み込みに失敗: %v", sessionID, err)
			continue
		}
		indexes = append(indexes, &sessionIndex{
			ID:         session.ID,
			Title:      session.Title,
			ScenarioID: session.ScenarioID,
			CreatedAt:  session.CreatedAt,
			UpdatedAt:  session.UpdatedAt,
		})
	}

	return d.writeIndexLocked(indexes)
}

func (d *DiskStorage) CreateSession(session *model.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.saveSessionFile(session); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := d.rebuildIndexLocked(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[session.ID] = session
	d.evictLocked()

	return nil
}

func (d *DiskStorage) GetSession(sessionID string) (*model.Session, error) {
	d.mu.RLock()
	if session, exists := d.cache[sessionID]; exists {
		d.mu.RUnlock()
		return session, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.loadSessionFile(sessionID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[sessionID] = session
	d.evictLocked()

	return session, nil
}

func (d *DiskStorage) UpdateSession(session *model.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.Stat(d.sessionPath(session.ID)); os.IsNotExist(err) {
		return ErrSessionNotFound
	}

	if err := d.saveSessionFile(session); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := d.rebuildIndexLocked(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[session.ID] = session

	return nil
}

func (d *DiskStorage) DeleteSession(sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.Stat(d.sessionPath(sessionID)); os.IsNotExist(err) {
		return ErrSessionNotFound
	}

	if err := os.Remove(d.sessionPath(sessionID)); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	delete(d.cache, sessionID)

	return d.rebuildIndexLocked()
}

func (d *DiskStorage) ListSessions() ([]*model.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	data, err := os.ReadFile(d.indexPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	var indexes []*sessionIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	sessions := make([]*model.Session, 0, len(indexes))
	for _, idx := range indexes {
		sessions = append(sessions, &model.Session{
			ID:         idx.ID,
			Title:      idx.Title,
			ScenarioID: idx.ScenarioID,
			CreatedAt:  idx.CreatedAt,
			UpdatedAt:  idx.UpdatedAt,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	return sessions, nil
}

func (d *DiskStorage) getOrLoadLocked(sessionID string) (*model.Session, error) {
	session, exists := d.cache[sessionID]
	if exists {
		return session, nil
	}

	session, err := d.loadSessionFile(sessionID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	d.cache[sessionID] = session
	return session, nil
}

func (d *DiskStorage) AddMessage(sessionID string, message *model.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.getOrLoadLocked(sessionID)
	if err != nil {
		return err
	}

	session.Messages = append(session.Messages, *message)
	session.UpdatedAt = time.Now()

	if err := d.saveSessionFile(session); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	return d.rebuildIndexLocked()
}

func (d *DiskStorage) GetMessages(sessionID string) ([]model.Message, error) {
	session, err := d.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	messages := make([]model.Message, len(session.Messages))
	copy(messages, session.Messages)

	return messages, nil
}

func (d *DiskStorage) UpdateMessageContent(sessionID, messageID, content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.getOrLoadLocked(sessionID)
	if err != nil {
		return err
	}

	for i := range session.Messages {
		if session.Messages[i].ID == messageID {
			session.Messages[i].Content = content
			session.UpdatedAt = time.Now()

			if err := d.saveSessionFile(session); err != nil {
				return fmt.Errorf("%w: %v", ErrFileOperation, err)
			}
			return nil
		}
	}

	return ErrMessageNotFound
}

func (d *DiskStorage) evictLocked() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	type cacheEntry struct {
		id        string
		updatedAt time.Time
	}

	var entries []cacheEntry
	for id, session := range d.cache {
		entries = append(entries, cacheEntry{id: id, updatedAt: session.UpdatedAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updatedAt.Before(entries[j].updatedAt)
	})

	toEvict := len(d.cache) - d.cacheSize
	for i := 0; i < toEvict; i++ {
		delete(d.cache, entries[i].id)
	}
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]*model.Session)
	return nil
}

func (d *DiskStorage) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", time.Now().Unix()))
	dstDir := filepath.Join(backupDir, "sessions")

	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	files, err := os.ReadDir(d.sessionsDir())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	for _, file := range files {
		data, err := os.ReadFile(filepath.Join(d.sessionsDir(), file.Name()))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
		if err := os.WriteFile(filepath.Join(dstDir, file.Name()), data, 0644); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	if data, err := os.ReadFile(d.indexPath()); err == nil {
		if err := os.WriteFile(filepath.Join(backupDir, "sessions.json"), data, 0644); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	logger.Infof("バックアップ完了: %s", backupDir)
	return nil
}
