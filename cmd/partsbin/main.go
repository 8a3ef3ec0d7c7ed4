package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/xuanvinh/partsbin/internal/assethost/cloudinary"
	"github.com/xuanvinh/partsbin/internal/config"
	"github.com/xuanvinh/partsbin/internal/crop"
	"github.com/xuanvinh/partsbin/internal/docstore/sqlite"
	"github.com/xuanvinh/partsbin/internal/domain"
	"github.com/xuanvinh/partsbin/internal/identity"
	"github.com/xuanvinh/partsbin/internal/inventory"
	"github.com/xuanvinh/partsbin/internal/livesync"
	"github.com/xuanvinh/partsbin/internal/logging"
)

const usage = `usage: partsbin <command> [flags]

commands:
  add      -name NAME -qty N [-desc TEXT] [-zone ZONE_ID] [-image FILE] [-crop X,Y,WxH -display WxH]
  list
  search   TERM
  adjust   ITEM_ID DELTA
  rm       ITEM_ID
  zone     add -name NAME [-location TEXT] | list | rm ZONE_ID
  watch
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(cfg.StorePath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	// Identity must be established before the live subscription starts.
	id, err := identity.Anonymous{}.Establish(ctx)
	if err != nil {
		logger.Error("failed to establish identity", "error", &domain.AuthError{Err: err})
		os.Exit(1)
	}

	sync := livesync.New(store, store.Feed(), logger)
	if err := sync.Start(ctx); err != nil {
		logger.Error("failed to start live sync", "error", err)
		os.Exit(1)
	}
	defer sync.Close()

	uploader := cloudinary.New(cfg.AssetUploadURL, cfg.AssetUploadPreset)
	svc := inventory.NewService(store, store, sync, uploader, id.UserID(), inventory.Config{
		PlaceholderImageURL: cfg.PlaceholderImageURL,
		MaxImageBytes:       cfg.MaxImageBytes,
	}, logger)

	if err := run(ctx, svc, sync, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "partsbin: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *inventory.Service, sync *livesync.Sync, command string, args []string) error {
	switch command {
	case "add":
		return cmdAdd(ctx, svc, args)
	case "list":
		printItems(sync.Current())
		return nil
	case "search":
		if len(args) != 1 {
			return fmt.Errorf("search needs exactly one term")
		}
		snap := sync.Current()
		for _, item := range snap.Filter(args[0]) {
			printItem(snap, item)
		}
		return nil
	case "adjust":
		return cmdAdjust(ctx, svc, args)
	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("rm needs an item id")
		}
		return svc.DeleteItem(ctx, args[0])
	case "zone":
		return cmdZone(ctx, svc, args)
	case "watch":
		return cmdWatch(ctx, sync)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdAdd(ctx context.Context, svc *inventory.Service, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "item name")
	qty := fs.Int64("qty", 1, "quantity")
	desc := fs.String("desc", "", "description")
	zone := fs.String("zone", "", "zone id")
	imagePath := fs.String("image", "", "path to a source image")
	cropArg := fs.String("crop", "", "crop selection as X,Y,WxH in displayed coordinates")
	displayArg := fs.String("display", "", "displayed size as WxH")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := inventory.CreateItemInput{Name: *name, Quantity: *qty, Description: *desc}
	if *zone != "" {
		in.ZoneID = zone
	}

	if *imagePath != "" {
		staged, err := stageImage(*imagePath, *cropArg, *displayArg)
		if err != nil {
			return err
		}
		in.Image = staged
	}

	item, err := svc.CreateItem(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("created %s  %s  qty=%d\n", item.ID, item.Name, item.Quantity)
	return nil
}

func stageImage(path, cropArg, displayArg string) (*inventory.StagedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	staged := &inventory.StagedImage{Data: data, MimeType: mimeFromPath(path)}

	if cropArg != "" {
		var region crop.Region
		if _, err := fmt.Sscanf(cropArg, "%d,%d,%dx%d", &region.X, &region.Y, &region.Width, &region.Height); err != nil {
			return nil, fmt.Errorf("bad -crop %q: %w", cropArg, err)
		}
		var displayed crop.Dimensions
		if _, err := fmt.Sscanf(displayArg, "%dx%d", &displayed.Width, &displayed.Height); err != nil {
			return nil, fmt.Errorf("bad -display %q: %w", displayArg, err)
		}
		staged.Region = region
		staged.Displayed = displayed
	}
	return staged, nil
}

func mimeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func cmdAdjust(ctx context.Context, svc *inventory.Service, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("adjust needs an item id and a delta")
	}
	delta, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("bad delta %q: %w", args[1], err)
	}

	item, err := svc.AdjustQuantity(ctx, args[0], delta)
	if err != nil {
		return err
	}
	fmt.Printf("%s  qty=%d\n", item.Name, item.Quantity)
	return nil
}

func cmdZone(ctx context.Context, svc *inventory.Service, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("zone needs a subcommand: add, list or rm")
	}
	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("zone add", flag.ExitOnError)
		name := fs.String("name", "", "zone name")
		location := fs.String("location", "", "free-text location")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		zone, err := svc.CreateZone(ctx, *name, *location)
		if err != nil {
			return err
		}
		fmt.Printf("created zone %s  %s\n", zone.ID, zone.Name)
		return nil
	case "list":
		zones, err := svc.ListZones(ctx)
		if err != nil {
			return err
		}
		for _, z := range zones {
			fmt.Printf("%s  %s  %s\n", z.ID, z.Name, z.Location)
		}
		return nil
	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("zone rm needs a zone id")
		}
		return svc.DeleteZone(ctx, args[1])
	default:
		return fmt.Errorf("unknown zone subcommand %q", args[0])
	}
}

// cmdWatch prints every snapshot emission until interrupted.
func cmdWatch(ctx context.Context, sync *livesync.Sync) error {
	unregister := sync.Register(livesync.ObserverFunc(func(snap livesync.Snapshot) {
		fmt.Printf("--- %d items, %d zones ---\n", len(snap.Items), len(snap.Zones))
		printItems(snap)
	}))
	defer unregister()

	<-ctx.Done()
	return nil
}

func printItems(snap livesync.Snapshot) {
	for _, item := range snap.Items {
		printItem(snap, item)
	}
}

func printItem(snap livesync.Snapshot, item domain.Item) {
	zoneName := "uncategorized"
	if zone := snap.ZoneFor(item); zone != nil {
		zoneName = zone.Name
	}
	fmt.Printf("%s  %-30s qty=%-5d zone=%s\n", item.ID, item.Name, item.Quantity, zoneName)
}
