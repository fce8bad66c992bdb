package redis

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/shopspring/decimal"
)

// Seats live in one hash per seat. Each hold keeps a set of its seat keys
// and a member in the holds sorted set scored by held_at, which is what the
// expiry sweep scans. All transitions run as single Lua scripts.
const holdsKey = "holds"

// KEYS[1] holds zset, KEYS[2] hold set, KEYS[3..] seat hashes.
// ARGV[1] hold id, ARGV[2] show id, ARGV[3] held_at ms.
// Returns {0} on success, {1, idx...} for missing seats, {2, idx...} for
// seats that are not AVAILABLE.
var reserveScript = redis.NewScript(`
	local missing, taken = {}, {}
	for i = 3, #KEYS do
		local status = redis.call("HGET", KEYS[i], "status")
		if not status then
			table.insert(missing, i - 2)
		elseif status ~= "AVAILABLE" then
			table.insert(taken, i - 2)
		end
	end
	if #missing > 0 then return {1, unpack(missing)} end
	if #taken > 0 then return {2, unpack(taken)} end

	for i = 3, #KEYS do
		redis.call("HSET", KEYS[i], "status", "HELD", "hold_id", ARGV[1], "held_at", ARGV[3])
		redis.call("SADD", KEYS[2], KEYS[i])
	end
	redis.call("ZADD", KEYS[1], ARGV[3], ARGV[1] .. "|" .. ARGV[2])
	return {0}
`)

// Returns 1 when any seat is not HELD by ARGV[1]; nothing changes then.
var confirmScript = redis.NewScript(`
	for i = 3, #KEYS do
		local s = redis.call("HMGET", KEYS[i], "status", "hold_id")
		if s[1] ~= "HELD" or s[2] ~= ARGV[1] then return 1 end
	end
	for i = 3, #KEYS do
		redis.call("HSET", KEYS[i], "status", "BOOKED")
		redis.call("SREM", KEYS[2], KEYS[i])
	end
	if redis.call("SCARD", KEYS[2]) == 0 then
		redis.call("ZREM", KEYS[1], ARGV[1] .. "|" .. ARGV[2])
	end
	return 0
`)

// Returns the number of seats released.
var releaseScript = redis.NewScript(`
	local released = 0
	for i = 3, #KEYS do
		local s = redis.call("HMGET", KEYS[i], "status", "hold_id")
		if s[1] == "HELD" and s[2] == ARGV[1] then
			redis.call("HSET", KEYS[i], "status", "AVAILABLE")
			redis.call("HDEL", KEYS[i], "hold_id", "held_at")
			redis.call("SREM", KEYS[2], KEYS[i])
			released = released + 1
		end
	end
	if redis.call("SCARD", KEYS[2]) == 0 then
		redis.call("ZREM", KEYS[1], ARGV[1] .. "|" .. ARGV[2])
	end
	return released
`)

type SeatStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewSeatStore(client redis.UniversalClient) *SeatStore {
	return &SeatStore{client: client, now: time.Now}
}

// WithClock replaces the clock stamped onto held seats.
func (s *SeatStore) WithClock(now func() time.Time) *SeatStore {
	s.now = now
	return s
}

func seatKey(showID, seatID uuid.UUID) string {
	return "seat:" + showID.String() + ":" + seatID.String()
}

func showIndexKey(showID uuid.UUID) string {
	return "show:" + showID.String() + ":seats"
}

func holdKey(holdID uuid.UUID) string {
	return "hold:" + holdID.String()
}

func scriptKeys(showID, holdID uuid.UUID, seatIDs []uuid.UUID) []string {
	keys := make([]string, 0, len(seatIDs)+2)
	keys = append(keys, holdsKey, holdKey(holdID))
	for _, id := range seatIDs {
		keys = append(keys, seatKey(showID, id))
	}
	return keys
}

func (s *SeatStore) AddSeats(ctx context.Context, seats ...domain.Seat) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, seat := range seats {
			status := seat.Status
			if status == "" {
				status = domain.SeatAvailable
			}
			pipe.HSet(ctx, seatKey(seat.ShowID, seat.ID),
				"number", seat.Number,
				"status", string(status),
				"price", seat.Price.String(),
			)
			pipe.HSet(ctx, showIndexKey(seat.ShowID), seat.Number, seat.ID.String())
		}
		return nil
	})
	return err
}

func (s *SeatStore) SetPrice(ctx context.Context, showID, seatID uuid.UUID, price decimal.Decimal) error {
	return s.client.HSet(ctx, seatKey(showID, seatID), "price", price.String()).Err()
}

func (s *SeatStore) Reserve(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	heldAt := strconv.FormatInt(s.now().UnixMilli(), 10)
	res, err := reserveScript.Run(ctx, s.client, scriptKeys(showID, holdID, seatIDs), holdID.String(), showID.String(), heldAt).Int64Slice()
	if err != nil {
		return errors.Wrap(err, "reserve script")
	}
	if len(res) == 0 || res[0] == 0 {
		return nil
	}

	picked := make([]uuid.UUID, 0, len(res)-1)
	for _, idx := range res[1:] {
		picked = append(picked, seatIDs[idx-1])
	}
	if res[0] == 1 {
		missing := make([]string, len(picked))
		for i, id := range picked {
			missing[i] = id.String()
		}
		return domain.NewNotFound("seat", missing...)
	}
	return &domain.SeatConflictError{SeatIDs: picked}
}

func (s *SeatStore) Confirm(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	res, err := confirmScript.Run(ctx, s.client, scriptKeys(showID, holdID, seatIDs), holdID.String(), showID.String()).Int64()
	if err != nil {
		return errors.Wrap(err, "confirm script")
	}
	if res != 0 {
		return errors.WithStack(&domain.IntegrityError{ShowID: showID, SeatIDs: seatIDs, HoldID: holdID, Want: domain.SeatHeld})
	}
	return nil
}

func (s *SeatStore) Release(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	err := releaseScript.Run(ctx, s.client, scriptKeys(showID, holdID, seatIDs), holdID.String(), showID.String()).Err()
	return errors.Wrap(err, "release script")
}

func (s *SeatStore) ExpiredHolds(ctx context.Context, cutoff time.Time) ([]domain.Hold, error) {
	members, err := s.client.ZRangeByScoreWithScores(ctx, holdsKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	holds := make([]domain.Hold, 0, len(members))
	for _, m := range members {
		member, _ := m.Member.(string)
		holdPart, showPart, ok := strings.Cut(member, "|")
		if !ok {
			continue
		}
		holdID, err := uuid.Parse(holdPart)
		if err != nil {
			continue
		}
		showID, err := uuid.Parse(showPart)
		if err != nil {
			continue
		}

		keys, err := s.client.SMembers(ctx, holdKey(holdID)).Result()
		if err != nil {
			return nil, err
		}
		h := domain.Hold{ID: holdID, ShowID: showID, HeldAt: time.UnixMilli(int64(m.Score)).UTC()}
		for _, k := range keys {
			if id, err := uuid.Parse(k[strings.LastIndexByte(k, ':')+1:]); err == nil {
				h.SeatIDs = append(h.SeatIDs, id)
			}
		}
		holds = append(holds, h)
	}
	return holds, nil
}

func (s *SeatStore) SeatsByShow(ctx context.Context, showID uuid.UUID) ([]domain.Seat, error) {
	index, err := s.client.HGetAll(ctx, showIndexKey(showID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(index))
	for _, raw := range index {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	seats, err := s.loadSeats(ctx, showID, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].Number < seats[j].Number })
	return seats, nil
}

func (s *SeatStore) SeatsByNumbers(ctx context.Context, showID uuid.UUID, numbers []string) ([]domain.Seat, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	raw, err := s.client.HMGet(ctx, showIndexKey(showID), numbers...).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue
		}
		if id, err := uuid.Parse(str); err == nil {
			ids = append(ids, id)
		}
	}
	return s.loadSeats(ctx, showID, ids)
}

func (s *SeatStore) loadSeats(ctx context.Context, showID uuid.UUID, ids []uuid.UUID) ([]domain.Seat, error) {
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, seatKey(showID, id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	seats := make([]domain.Seat, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		seat, err := parseSeat(showID, ids[i], fields)
		if err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, nil
}

func parseSeat(showID, seatID uuid.UUID, fields map[string]string) (domain.Seat, error) {
	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return domain.Seat{}, errors.Wrapf(err, "price of seat %s", seatID)
	}
	seat := domain.Seat{
		ID:     seatID,
		ShowID: showID,
		Number: fields["number"],
		Status: domain.SeatStatus(fields["status"]),
		Price:  price,
	}
	if v := fields["hold_id"]; v != "" {
		seat.HoldID, _ = uuid.Parse(v)
	}
	if v := fields["held_at"]; v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			seat.HeldAt = time.UnixMilli(ms).UTC()
		}
	}
	return seat, nil
}
