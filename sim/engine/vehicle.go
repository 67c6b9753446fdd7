package engine

import "math"

// VehicleParams are the fixed physical parameters of the car
type VehicleParams struct {
	Length            float64 `json:"length"`
	MaxVelocity       float64 `json:"max_velocity"`
	MaxAcceleration   float64 `json:"max_acceleration"`
	MaxSteering       float64 `json:"max_steering"`
	BrakeDeceleration float64 `json:"brake_deceleration"`
	FreeDeceleration  float64 `json:"free_deceleration"`
	SteeringRate      float64 `json:"steering_rate"`
	AccelerationRate  float64 `json:"acceleration_rate"`
}

// VehicleState is the mutable part of the car, owned by the simulation loop
type VehicleState struct {
	Position     Point   `json:"position"`
	Velocity     float64 `json:"velocity"`
	Heading      float64 `json:"heading"`
	Steering     float64 `json:"steering"`
	Acceleration float64 `json:"acceleration"`
}

// Controls is the per-tick driver input
type Controls struct {
	Forward bool `json:"forward"`
	Reverse bool `json:"reverse"`
	Brake   bool `json:"brake"`
	Left    bool `json:"left"`
	Right   bool `json:"right"`
}

// Vehicle integrates a kinematic bicycle model
type Vehicle struct {
	VehicleState
	Params VehicleParams
}

// NewVehicle places a car at pos facing heading degrees
func NewVehicle(pos Point, heading float64, params VehicleParams) *Vehicle {
	return &Vehicle{
		VehicleState: VehicleState{Position: pos, Heading: heading},
		Params:       params,
	}
}

// Update advances the car by dt seconds. A non-positive dt leaves the state untouched.
func (v *Vehicle) Update(dt float64) {
	if dt <= 0 {
		return
	}
	p := v.Params
	v.Acceleration = clamp(v.Acceleration, -p.MaxAcceleration, p.MaxAcceleration)
	v.Steering = clamp(v.Steering, -p.MaxSteering, p.MaxSteering)

	v.Velocity = clamp(v.Velocity+v.Acceleration*dt, -p.MaxVelocity, p.MaxVelocity)

	angularVelocity := 0.0
	if v.Steering != 0 {
		turningRadius := p.Length / math.Tan(radians(v.Steering))
		angularVelocity = v.Velocity / turningRadius
	}

	// Velocity points along the car's own x axis; rotating by -heading maps it to world space.
	h := radians(v.Heading)
	v.Position.X += v.Velocity * math.Cos(h) * dt
	v.Position.Y -= v.Velocity * math.Sin(h) * dt
	v.Heading += degrees(angularVelocity) * dt
}

// ApplyControls turns key state into acceleration and steering for the next Update.
// Velocity is only ever divided by dt when dt is non-zero.
func (v *Vehicle) ApplyControls(c Controls, dt float64) {
	p := v.Params

	switch {
	case c.Forward:
		if v.Velocity < 0 {
			v.Acceleration = p.BrakeDeceleration
		} else {
			v.Acceleration += p.AccelerationRate * dt
		}
	case c.Reverse:
		if v.Velocity > 0 {
			v.Acceleration = -p.BrakeDeceleration
		} else {
			v.Acceleration -= p.AccelerationRate * dt
		}
	case c.Brake:
		v.decelerate(p.BrakeDeceleration, dt)
	default:
		v.decelerate(p.FreeDeceleration, dt)
	}
	v.Acceleration = clamp(v.Acceleration, -p.MaxAcceleration, p.MaxAcceleration)

	switch {
	case c.Right:
		v.Steering -= p.SteeringRate * dt
	case c.Left:
		v.Steering += p.SteeringRate * dt
	default:
		v.Steering = 0
	}
	v.Steering = clamp(v.Steering, -p.MaxSteering, p.MaxSteering)
}

func (v *Vehicle) decelerate(rate, dt float64) {
	if math.Abs(v.Velocity) > dt*rate {
		v.Acceleration = -math.Copysign(rate, v.Velocity)
		return
	}
	if dt != 0 {
		v.Acceleration = -v.Velocity / dt
	}
}

// PixelPosition converts the world position into playfield pixels
func (v *Vehicle) PixelPosition(ppu float64) Point {
	return v.Position.Scale(ppu)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
