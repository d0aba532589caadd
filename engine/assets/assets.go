package assets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/vkshadow/engine/assets/loaders"
	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// DefaultSettleDelay is how long a new model file must stay quiet before it
// is announced. Copies arrive as a Create followed by several Writes.
const DefaultSettleDelay = 250 * time.Millisecond

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

// AssetManager indexes the asset directories and watches them. Model files
// that appear after Initialize are announced once to the OnModelAdded
// callbacks.
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	announced map[string]struct{}
	pending   map[string]*time.Timer
	onModel   []func(path string)
	settle    time.Duration

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	started  bool
}

func NewAssetManager(settle time.Duration) (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file watcher")
	}
	if settle <= 0 {
		settle = DefaultSettleDelay
	}

	return &AssetManager{
		assets:    make(map[string]AssetInfo),
		loaders:   make(map[metadata.ResourceType]Loader),
		announced: make(map[string]struct{}),
		pending:   make(map[string]*time.Timer),
		settle:    settle,
		fsnotify:  fsWatch,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}, nil
}

// Initialize indexes and watches every directory. Files already present are
// indexed but never announced.
func (am *AssetManager) Initialize(dirs ...string) error {
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})

	for _, dir := range dirs {
		if err := am.addRecursive(dir); err != nil {
			return errors.Wrapf(err, "watching %s", dir)
		}
	}

	am.mutex.Lock()
	am.started = true
	am.mutex.Unlock()
	go am.start()
	return nil
}

// OnModelAdded registers fn to be called with the path of each model file
// dropped into a watched directory. It runs on a timer goroutine.
func (am *AssetManager) OnModelAdded(fn func(path string)) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.onModel = append(am.onModel, fn)
}

// Assets lists the indexed paths of one type, sorted.
func (am *AssetManager) Assets(assetType metadata.ResourceType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	paths := make([]string, 0, len(am.assets))
	for path, info := range am.assets {
		if info.Type == assetType {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	am.mutex.RLock()
	closed := am.isClosed
	am.mutex.RUnlock()
	if closed {
		return errors.New("asset manager already closed")
	}
	return am.watchRecursive(name, false)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

// Load an asset using the appropriate loader
func (am *AssetManager) LoadAsset(path string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	path = filepath.Clean(path)

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	loader, loaderExists := am.loaders[resourceType]
	am.mutex.Unlock()

	if !exists {
		err := errors.Newf("asset not found: %s", path)
		core.LogError(err.Error())
		return nil, err
	}
	if asset.Type != resourceType {
		return nil, errors.Newf("asset %s is not of type %d", path, resourceType)
	}
	if !loaderExists {
		return nil, errors.Newf("no loader registered for asset type: %d", resourceType)
	}
	return loader.Load(path, resourceType, params)
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	am.mutex.RLock()
	info, exists := am.assets[asset.FullPath]
	loader, ok := am.loaders[info.Type]
	am.mutex.RUnlock()
	if !exists {
		return nil
	}
	if ok {
		return loader.Unload(asset)
	}
	return nil
}

// Shutdown stops the watcher goroutine and drops pending announcements.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	started := am.started
	for path, timer := range am.pending {
		timer.Stop()
		delete(am.pending, path)
	}
	am.mutex.Unlock()

	if !started {
		return am.fsnotify.Close()
	}
	close(am.done)
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {

		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			name := filepath.Clean(e.Name)
			s, err := os.Stat(name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(name, false); err != nil {
						core.LogWarn("could not watch %s: %s", name, err)
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if am.handleFileEvent(name) {
					am.scheduleAnnounce(name)
				}
			}
			// a removed path can't be stat'ed, so it is also dropped from the watch list
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(name)
				if err := am.fsnotify.Remove(name); err != nil {
					core.LogDebug("stop watching %s: %s", name, err)
				}
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files it finds.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		p := filepath.Clean(walkPath)
		if am.handleFileEvent(p) {
			am.mutex.Lock()
			am.announced[p] = struct{}{}
			am.mutex.Unlock()
		}
		return nil
	})
}

// handleFileEvent indexes a created or modified file. It reports whether
// the file is a model that has not been announced yet.
func (am *AssetManager) handleFileEvent(path string) bool {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return false
	}
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
	if assetType != metadata.ResourceTypeModel {
		return false
	}
	_, seen := am.announced[path]
	return !seen
}

func (am *AssetManager) scheduleAnnounce(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.isClosed {
		return
	}
	if timer, ok := am.pending[path]; ok {
		timer.Reset(am.settle)
		return
	}
	am.pending[path] = time.AfterFunc(am.settle, func() { am.announce(path) })
}

func (am *AssetManager) announce(path string) {
	am.mutex.Lock()
	delete(am.pending, path)
	_, indexed := am.assets[path]
	_, seen := am.announced[path]
	if am.isClosed || !indexed || seen {
		am.mutex.Unlock()
		return
	}
	am.announced[path] = struct{}{}
	callbacks := append([]func(string){}, am.onModel...)
	am.mutex.Unlock()

	core.LogInfo("New model %s found.", path)
	for _, fn := range callbacks {
		fn(path)
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
	delete(am.announced, path)
	if timer, ok := am.pending[path]; ok {
		timer.Stop()
		delete(am.pending, path)
	}
}

func determineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return metadata.ResourceTypeShader
	case ".obj", ".gltf", ".glb":
		return metadata.ResourceTypeModel
	default:
		return metadata.ResourceTypeNone
	}
}
