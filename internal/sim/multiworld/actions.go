package multiworld

import (
	"encoding/json"
	"fmt"

	"roguelite.ai/internal/protocol"
	"roguelite.ai/internal/sim/world"
)

// Blocks a player can reach with PLACE, measured as Manhattan distance.
const reachBlocks = 8

type actionError struct {
	code string
	msg  string
}

func (e *actionError) Error() string { return e.code + ": " + e.msg }

func actErr(code, format string, args ...any) error {
	return &actionError{code: code, msg: fmt.Sprintf(format, args...)}
}

func (s *Server) handleAction(nowTick uint64, env ActionEnvelope) {
	p := s.onlinePlayer(env.PlayerID)
	if p == nil {
		return
	}
	err := s.applyAction(p, env.Act)
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          env.Act.Ref,
		Accepted:        err == nil,
		ServerTick:      nowTick,
		WorldID:         p.LevelID,
	}
	if err != nil {
		ack.Code = protocol.ErrInternal
		ack.Message = err.Error()
		if ae, ok := err.(*actionError); ok && protocol.IsKnownCode(ae.code) {
			ack.Code, ack.Message = ae.code, ae.msg
		}
		s.log.Debug("action rejected", "player", p.Name, "action", env.Act.Action, "code", ack.Code, "reason", ack.Message)
	}
	if out := p.Outbox(); out != nil {
		if b, err := json.Marshal(ack); err == nil {
			select {
			case out <- b:
			default:
			}
		}
	}
}

func (s *Server) onlinePlayer(id string) *world.Player {
	if !s.online[id] {
		return nil
	}
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Server) applyAction(p *world.Player, act protocol.ActMsg) error {
	lvl := s.byID[p.LevelID]
	pos := world.Vec3i{X: act.Pos[0], Y: act.Pos[1], Z: act.Pos[2]}
	switch act.Action {
	case protocol.ActMove:
		return s.move(p, lvl, act.WorldID, pos)
	case protocol.ActDrop:
		return s.drop(p, lvl, act.Slot, act.Count)
	case protocol.ActPlace:
		return s.place(p, lvl, pos, act.Item)
	case protocol.ActGive:
		if !s.opts.AllowGive {
			return actErr(protocol.ErrNoPermission, "GIVE is disabled")
		}
		if _, ok := s.cats.Items.Defs[act.Item]; !ok || act.Count <= 0 {
			return actErr(protocol.ErrBadRequest, "bad item or count")
		}
		if left := p.Inventory.Add(act.Item, act.Count, s.cats.MaxStack(act.Item)); left > 0 {
			return actErr(protocol.ErrNoResource, "%d items did not fit", left)
		}
		return nil
	default:
		return actErr(protocol.ErrBadRequest, "unknown action %q", act.Action)
	}
}

// move teleports within the current level, or into another level when
// worldID names one (arrival at that level's spawn).
func (s *Server) move(p *world.Player, lvl *world.World, worldID string, pos world.Vec3i) error {
	if worldID != "" && worldID != p.LevelID {
		dst := s.byID[worldID]
		if dst == nil {
			return actErr(protocol.ErrWorldNotFound, "no world %q", worldID)
		}
		lvl.RemovePlayer(p.ID)
		dst.AddPlayer(p)
		p.Pos = dst.Spawn()
		s.log.Info("player changed dimension", "player", p.Name, "from", lvl.ID(), "to", dst.ID())
		return nil
	}
	if pos.Y < lvl.MinY() || pos.Y > lvl.MaxY() {
		return actErr(protocol.ErrInvalidTarget, "y=%d outside the world", pos.Y)
	}
	p.Pos = pos
	return nil
}

func (s *Server) drop(p *world.Player, lvl *world.World, slot, count int) error {
	st := p.Inventory.Item(slot)
	if st.IsEmpty() {
		return actErr(protocol.ErrNoResource, "slot %d is empty", slot)
	}
	if count <= 0 || count > st.Count {
		count = st.Count
	}
	st.Count -= count
	p.Inventory.SetItem(slot, st)
	lvl.SpawnItem(p.Name, p.Pos, st.Item, count, "DROP")
	return nil
}

func (s *Server) place(p *world.Player, lvl *world.World, pos world.Vec3i, item string) error {
	def, ok := s.cats.Items.Defs[item]
	if !ok || def.PlaceAs == "" {
		return actErr(protocol.ErrBadRequest, "%q cannot be placed", item)
	}
	if world.Manhattan(p.Pos, pos) > reachBlocks {
		return actErr(protocol.ErrInvalidTarget, "out of reach")
	}
	slot := -1
	for i := 0; i < world.MainSlots; i++ {
		if st := p.Inventory.Item(i); st.Item == item && st.Count > 0 {
			slot = i
			break
		}
	}
	if slot < 0 {
		return actErr(protocol.ErrNoResource, "no %s in inventory", item)
	}

	if _, isBlock := s.cats.Blocks.Defs[def.PlaceAs]; isBlock {
		if lvl.GetBlock(pos) != s.cats.Blocks.Index["AIR"] {
			return actErr(protocol.ErrInvalidTarget, "target is not air")
		}
		if err := lvl.PlaceBlock(p.Name, pos, def.PlaceAs); err != nil {
			return actErr(protocol.ErrInvalidTarget, "%v", err)
		}
	} else if _, err := lvl.SpawnVehicle(p.Name, def.PlaceAs, pos); err != nil {
		return actErr(protocol.ErrInvalidTarget, "%v", err)
	}

	st := p.Inventory.Item(slot)
	st.Count--
	p.Inventory.SetItem(slot, st)
	return nil
}
