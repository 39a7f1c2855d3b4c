/*Package daqmx provides a Go interface to National Instruments DAQmx tasks.

The vendor driver is reached through the Driver and Inventory interfaces; this
package never talks to hardware on its own.  A Task owns exactly one driver
handle and multiplexes the channel-kind specific driver calls behind
Configure, Start, Stop, Close and the read/write methods.

Basic usage is as follows:
 drv, err := daqmx.Open("mock")
 if err != nil {
 	log.Fatal(err)
 }
 task := daqmx.NewTask(drv, "ai")
 defer task.Close()
 ch := daqmx.AIVoltage("Dev1/ai0", -10, 10, daqmx.TermDefault)
 clk := daqmx.Clock{Frequency: 1000, SampleCount: 100}
 err = task.Configure([]daqmx.Channel{ch}, clk, daqmx.Trigger{})
 if err != nil {
 	log.Fatal(err)
 }
 err = task.Start()
 data, err := task.ReadAnalog(1, clk) // blocks for at most 2*100/1000 s
 task.Stop()

 // single point output, no timing
 ao := daqmx.NewTask(drv, "ao")
 defer ao.Close()
 ao.Configure([]daqmx.Channel{daqmx.AOVoltage("Dev1/ao0", -10, 10)},
 	daqmx.Clock{Frequency: 1000, SampleCount: 1}, daqmx.Trigger{})
 ao.WriteAnalog(1, 1, []float64{2.5}, true)

Tasks are safe for concurrent use.  Callbacks registered with RegisterCallback
are invoked on the driver's event thread while the Task lock is held, so they
must not call methods of the same Task; post a message instead.
*/
package daqmx
